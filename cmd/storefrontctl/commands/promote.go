package commands

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
)

var demote bool

// promoteCmd is the only way to grant the admin role.
var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role to a registered user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := dbURL
		if dsn == "" {
			db, err := loadDB()
			if err != nil {
				return err
			}
			dsn = db.DSN()
		}

		pool, err := pgxpool.New(cmd.Context(), dsn)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		role := model.RoleAdmin
		if demote {
			role = model.RoleUser
		}

		email := args[0]
		if err := repository.NewUserRepository(pool).UpdateRole(cmd.Context(), email, role); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("no user with email %q", email)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", email, role)
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVar(&demote, "demote", false, "revoke the admin role instead")
}
