package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/config"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	Long: `Create an account directly in the registry, the command line
counterpart of the admin console's user form.

Examples:
  sitehost users add --email ana@example.com
  sitehost users add --email ops@example.com --admin`,
	RunE: runUsersAdd,
}

var (
	usersAddEmail    string
	usersAddUsername string
	usersAddPassword string
	usersAddAdmin    bool
)

func init() {
	usersAddCmd.Flags().StringVar(&usersAddEmail, "email", "", "account email")
	usersAddCmd.Flags().StringVar(&usersAddUsername, "username", "", "display name")
	usersAddCmd.Flags().StringVar(&usersAddPassword, "password", "", "password (prompted when empty)")
	usersAddCmd.Flags().BoolVar(&usersAddAdmin, "admin", false, "grant the admin role")

	usersCmd.AddCommand(usersAddCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	accounts, err := newAccountService(cfg, db)
	if err != nil {
		return err
	}

	acct, err := promptAccount(cfg, usersAddEmail, usersAddUsername, usersAddPassword)
	if errors.Is(err, errCancelled) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	var roles []sitehost.Role
	if usersAddAdmin {
		roles = append(roles, sitehost.RoleAdmin)
	}

	p, err := accounts.Enroll(ctx, acct, roles...)
	if err != nil {
		return err
	}

	if usersAddAdmin {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s created.\n", p.Email)
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User %s created.\n", p.Email)
	}
	return nil
}
