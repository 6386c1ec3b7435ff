package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the first administrator",
	Long: `Create the first administrator account. This is the command line
counterpart of the /setup screen and fails once any administrator exists.

Fields not given as flags are prompted for.

Examples:
  sitehost setup
  sitehost setup --email admin@example.com --username Admin`,
	RunE: runSetup,
}

var (
	setupEmail    string
	setupUsername string
	setupPassword string
)

func init() {
	setupCmd.Flags().StringVar(&setupEmail, "email", "", "administrator email")
	setupCmd.Flags().StringVar(&setupUsername, "username", "", "administrator display name")
	setupCmd.Flags().StringVar(&setupPassword, "password", "", "administrator password (prompted when empty)")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	accounts, err := newAccountService(cfg, db)
	if err != nil {
		return err
	}

	required, err := accounts.SetupRequired(ctx)
	if err != nil {
		return err
	}
	if !required {
		return errors.New("setup already completed: an administrator exists")
	}

	acct, err := promptAccount(cfg, setupEmail, setupUsername, setupPassword)
	if errors.Is(err, errCancelled) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	admin, err := accounts.Bootstrap(ctx, acct)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s created.\n", admin.Email)
	return nil
}

func promptAccount(cfg *config.Config, email, username, password string) (sitehost.NewAccount, error) {
	p := accountPrompts{minPassword: cfg.Auth.MinPasswordLength}

	var (
		acct sitehost.NewAccount
		err  error
	)
	if acct.Email, err = p.email(email); err != nil {
		return acct, err
	}
	// The display name is optional, so it is only asked for interactively.
	acct.Username = username
	if email == "" {
		if acct.Username, err = p.username(username); err != nil {
			return acct, err
		}
	}
	if acct.Password, err = p.password(password); err != nil {
		return acct, err
	}
	if acct.Email == "" {
		return acct, fmt.Errorf("%w: email is required", sitehost.ErrInvalidInput)
	}
	return acct, nil
}
