package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perimeterhq/gatehouse/internal/database"
	"github.com/perimeterhq/gatehouse/internal/origin"
)

// NewOriginsCmd creates the origin allow-list command with list, add,
// remove, and check subcommands.
func NewOriginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "origins",
		Short: "Manage the stored origin allow-list",
		Long:  "List, add, or remove allowed origins. A non-empty stored list replaces ALLOWED_ORIGINS on next restart.",
	}
	cmd.AddCommand(newOriginsListCmd())
	cmd.AddCommand(newOriginsAddCmd())
	cmd.AddCommand(newOriginsRemoveCmd())
	cmd.AddCommand(newOriginsCheckCmd())
	return cmd
}

func newOriginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored origins",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			origins, err := database.NewOriginRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("list origins: %w", err)
			}
			if len(origins) == 0 {
				fmt.Println("No stored origins. The gateway uses ALLOWED_ORIGINS.")
				return nil
			}
			for _, o := range origins {
				fmt.Printf("  %s\n", o)
			}
			return nil
		},
	}
}

func newOriginsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <origin>",
		Short: "Add an origin to the stored allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := database.NewOriginRepository(db).Add(context.Background(), args[0]); err != nil {
				return fmt.Errorf("add origin: %w", err)
			}
			fmt.Printf("Added %s. Restart the gateway to apply.\n", args[0])
			return nil
		},
	}
}

func newOriginsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <origin>",
		Short: "Remove an origin from the stored allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := database.NewOriginRepository(db).Remove(context.Background(), args[0]); err != nil {
				return fmt.Errorf("remove origin: %w", err)
			}
			fmt.Printf("Removed %s. Restart the gateway to apply.\n", args[0])
			return nil
		},
	}
}

func newOriginsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <origin>",
		Short: "Evaluate an origin against the effective allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			allow := origin.FromEnv(cfg.AllowedOrigins, cfg.DevMode())
			stored, err := database.NewOriginRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("list origins: %w", err)
			}
			if len(stored) > 0 {
				allow = origin.NewAllowList(stored, cfg.DevMode())
			}

			if allow.IsAllowed(args[0]) {
				fmt.Printf("%s is allowed\n", args[0])
			} else {
				fmt.Printf("%s is blocked\n", args[0])
			}
			return nil
		},
	}
}
