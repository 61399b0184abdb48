package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OriginRepository handles the stored origin allow-list.
type OriginRepository struct {
	db *DB
}

// NewOriginRepository creates a new origin repository.
func NewOriginRepository(db *DB) *OriginRepository {
	return &OriginRepository{db: db}
}

// List retrieves all stored origins in insertion order.
func (r *OriginRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT origin FROM allowed_origins ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list origins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate origins: %w", err)
	}
	return out, nil
}

// Add inserts an origin; adding an existing origin is a no-op.
func (r *OriginRepository) Add(ctx context.Context, o string) error {
	o = strings.TrimSpace(o)
	if o == "" {
		return fmt.Errorf("origin cannot be empty")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO allowed_origins (origin, created_at)
		VALUES ($1, $2)
		ON CONFLICT (origin) DO NOTHING
	`, o, time.Now())
	if err != nil {
		return fmt.Errorf("add origin: %w", err)
	}
	return nil
}

// Remove deletes an origin.
func (r *OriginRepository) Remove(ctx context.Context, o string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM allowed_origins WHERE origin = $1
	`, strings.TrimSpace(o))
	if err != nil {
		return fmt.Errorf("remove origin: %w", err)
	}
	return nil
}
