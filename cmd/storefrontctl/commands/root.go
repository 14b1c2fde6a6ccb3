package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flicky/go-storefront-api/internal/config"
)

var dbURL string

var rootCmd = &cobra.Command{
	Use:   "storefrontctl",
	Short: "Operational tooling for the storefront API",
	Long: `storefrontctl runs schema migrations and administrative tasks against the
storefront database. Connection settings come from the same DB_* environment
variables (or .env file) the API uses, unless --db is given.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "postgres connection URL (overrides DB_* settings)")
	rootCmd.AddCommand(migrateCmd, promoteCmd)
}

func loadDB() (config.DBConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.DBConfig{}, err
	}
	return cfg.DB, nil
}
