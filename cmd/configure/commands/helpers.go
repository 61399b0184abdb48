package commands

import (
	"fmt"

	"github.com/perimeterhq/gatehouse/internal/config"
	"github.com/perimeterhq/gatehouse/internal/database"
)

// openDB loads config and connects to the override store. The gateway
// reads overrides at startup, so changes made here take effect on the
// next restart.
func openDB() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not configured")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}
