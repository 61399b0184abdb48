package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/perimeterhq/gatehouse/internal/database"
	"github.com/perimeterhq/gatehouse/internal/models"
	"github.com/perimeterhq/gatehouse/internal/policy"
)

// NewPolicyCmd creates the policy configuration command with list and
// set subcommands.
func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage stored rate-limit quotas",
		Long:  "List or update per-policy quota overrides (api, login, form). Stored in database.",
	}
	cmd.AddCommand(newPolicyListCmd())
	cmd.AddCommand(newPolicySetCmd())
	return cmd
}

func newPolicyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effective quotas and stored overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			limits, err := cfg.Limits()
			if err != nil {
				return fmt.Errorf("load limits: %w", err)
			}

			overrides, err := database.NewPolicyConfigRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("list policy overrides: %w", err)
			}
			limits = database.ApplyOverrides(limits, overrides)

			stored := make(map[string]bool, len(overrides))
			for _, o := range overrides {
				stored[o.Name] = true
			}

			fmt.Println("Effective quotas:")
			for _, p := range []struct {
				name  string
				quota policy.Quota
			}{
				{policy.NameAPI, limits.API},
				{policy.NameLogin, limits.Login},
				{policy.NameForm, limits.Form},
			} {
				source := "default/env"
				if stored[p.name] {
					source = "database"
				}
				fmt.Printf("  %-6s %d requests / %s  (%s)\n", p.name, p.quota.Limit, p.quota.Window, source)
			}
			return nil
		},
	}
}

func newPolicySetCmd() *cobra.Command {
	var (
		name   string
		limit  int
		window time.Duration
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a quota override for one policy",
		Long:  "Store a quota override (e.g. --name login --limit 10 --window 30m). Applied on next gateway restart.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch name {
			case policy.NameAPI, policy.NameLogin, policy.NameForm:
			default:
				return fmt.Errorf("--name must be one of: %s, %s, %s", policy.NameAPI, policy.NameLogin, policy.NameForm)
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			if window < time.Second {
				return fmt.Errorf("--window must be at least 1s")
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			override := &models.PolicyOverride{
				Name:          name,
				MaxRequests:   limit,
				WindowSeconds: int(window / time.Second),
			}
			if err := database.NewPolicyConfigRepository(db).Set(context.Background(), override); err != nil {
				return fmt.Errorf("set policy override: %w", err)
			}
			fmt.Printf("Stored %s quota: %d requests / %s. Restart the gateway to apply.\n", name, limit, window)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Policy name: api, login, or form (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum requests per window (required)")
	cmd.Flags().DurationVar(&window, "window", 0, "Window duration, e.g. 15m (required)")
	return cmd
}
