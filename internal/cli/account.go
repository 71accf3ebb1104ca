package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/ostruka/internal/db"
)

func newAccountCmd(opts *rootOptions) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage relay accounts",
		Long:  "Manage the accounts `ostruka serve` checks logins against.",
	}
	cmd.PersistentFlags().StringVar(&database, "database", "", "account database path")

	open := func() (*db.AccountRepository, func(), error) {
		cfg, _, err := opts.load(map[string]string{"relay.database": database})
		if err != nil {
			return nil, nil, err
		}
		path := accountDatabase(cfg.Relay.Database)
		if path == "" {
			return nil, nil, errors.New("no account database configured")
		}
		store, err := db.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return db.NewAccountRepository(store), func() { _ = store.Close() }, nil
	}

	var passwordStdin bool
	add := &cobra.Command{
		Use:   "add <user>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			var err error
			if passwordStdin {
				password, err = readPasswordLine(cmd.InOrStdin())
			} else {
				password, err = newPassword(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}

			repo, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			account, err := repo.Create(cmd.Context(), args[0], password)
			if err != nil {
				return fmt.Errorf("failed to create account %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s\n", account.Username)
			return nil
		},
	}
	add.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			accounts, err := repo.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts found.")
				return nil
			}
			return writeTable(cmd.OutOrStdout(), []string{"USER", "CREATED", "LAST LOGIN"}, accountRows(accounts))
		},
	}

	remove := &cobra.Command{
		Use:     "remove <user>",
		Aliases: []string{"rm"},
		Short:   "Delete an account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			if err := repo.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove account %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}
