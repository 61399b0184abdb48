package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perimeterhq/gatehouse/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "gatehouse-configure",
		Short: "Configuration tool for the gatehouse gateway",
		Long:  "CLI tool for managing stored rate-limit quotas and the origin allow-list",
	}

	rootCmd.AddCommand(commands.NewPolicyCmd())
	rootCmd.AddCommand(commands.NewOriginsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
