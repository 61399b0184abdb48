package database

import (
	"context"
	"fmt"
	"time"

	"github.com/perimeterhq/gatehouse/internal/models"
	"github.com/perimeterhq/gatehouse/internal/policy"
)

// PolicyConfigRepository handles stored rate-limit quota overrides.
type PolicyConfigRepository struct {
	db *DB
}

// NewPolicyConfigRepository creates a new policy config repository.
func NewPolicyConfigRepository(db *DB) *PolicyConfigRepository {
	return &PolicyConfigRepository{db: db}
}

// List retrieves all stored overrides.
func (r *PolicyConfigRepository) List(ctx context.Context) ([]*models.PolicyOverride, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, max_requests, window_seconds, updated_at
		FROM policy_config ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list policy config: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.PolicyOverride
	for rows.Next() {
		o := &models.PolicyOverride{}
		if err := rows.Scan(&o.Name, &o.MaxRequests, &o.WindowSeconds, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan policy config: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy config: %w", err)
	}
	return out, nil
}

// Set upserts one policy's quota override.
func (r *PolicyConfigRepository) Set(ctx context.Context, o *models.PolicyOverride) error {
	if o.MaxRequests <= 0 || o.WindowSeconds <= 0 {
		return fmt.Errorf("policy quota must be positive")
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policy_config (name, max_requests, window_seconds, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			max_requests = EXCLUDED.max_requests,
			window_seconds = EXCLUDED.window_seconds,
			updated_at = EXCLUDED.updated_at
	`, o.Name, o.MaxRequests, o.WindowSeconds, now)
	if err != nil {
		return fmt.Errorf("set policy config: %w", err)
	}
	return nil
}

// ApplyOverrides overlays stored overrides onto the given limits.
// Unknown policy names are ignored.
func ApplyOverrides(limits policy.Limits, overrides []*models.PolicyOverride) policy.Limits {
	for _, o := range overrides {
		q := policy.Quota{
			Limit:  o.MaxRequests,
			Window: time.Duration(o.WindowSeconds) * time.Second,
		}
		switch o.Name {
		case policy.NameAPI:
			limits.API = q
		case policy.NameLogin:
			limits.Login = q
		case policy.NameForm:
			limits.Form = q
		}
	}
	return limits
}
