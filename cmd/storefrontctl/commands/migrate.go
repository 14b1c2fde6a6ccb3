package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flicky/go-storefront-api/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrateURL()
		if err != nil {
			return err
		}
		if err := migrations.Up(url); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration (drops all storefront tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrateURL()
		if err != nil {
			return err
		}
		if err := migrations.Down(url); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

// migrateURL rewrites a postgres:// URL to the pgx5:// scheme golang-migrate expects.
func migrateURL() (string, error) {
	if dbURL != "" {
		return toPgx5(dbURL), nil
	}
	db, err := loadDB()
	if err != nil {
		return "", err
	}
	return db.MigrateURL(), nil
}

func toPgx5(url string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx5://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
