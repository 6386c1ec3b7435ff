package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/config"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Inspect and remove published sites",
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published sites, newest first",
	Long: `List published sites, newest first.

Examples:
  # Every site, as a table
  sitehost sites list

  # One owner's sites as JSON
  sitehost sites list --owner ana@example.com -o json

  # Identifiers starting with "docs"
  sitehost sites list --prefix docs -o yaml`,
	RunE: runSitesList,
}

var sitesRemoveCmd = &cobra.Command{
	Use:   "remove [flags] <identifier> [identifier] ...",
	Short: "Remove sites and their content",
	Long: `Remove sites by identifier. The registry record goes first; content
that cannot be deleted right away is left for the sweeper.

Examples:
  sitehost sites remove my-page
  sitehost sites remove old-page other-page -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSitesRemove,
}

var (
	sitesOutput string
	sitesOwner  string
	sitesPrefix string
	sitesLimit  int
)

func init() {
	sitesCmd.PersistentFlags().StringVarP(&sitesOutput, "output", "o", outputText, "output format: text, json, yaml")

	sitesListCmd.Flags().StringVar(&sitesOwner, "owner", "", "only sites owned by this email")
	sitesListCmd.Flags().StringVar(&sitesPrefix, "prefix", "", "only identifiers starting with this prefix")
	sitesListCmd.Flags().IntVar(&sitesLimit, "limit", 0, "maximum number of sites (0 lists all)")

	sitesCmd.AddCommand(sitesListCmd, sitesRemoveCmd)
	rootCmd.AddCommand(sitesCmd)
}

func runSitesList(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	formatter, err := newFormatter(sitesOutput)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	registry := db.GetSiteRegistry()

	list := registry.ListAll
	if sitesOwner != "" {
		owner, findErr := db.GetUserRepo().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(sitesOwner)))
		if findErr != nil {
			return fmt.Errorf("find owner %s: %w", sitesOwner, findErr)
		}
		list = func(ctx context.Context, q sitehost.ListQuery) (sitehost.ListResult, error) {
			return registry.ListByOwner(ctx, owner.ID, q)
		}
	}

	var (
		sites  []sitehost.Site
		cursor string
	)
	for {
		pageSize := 500
		if sitesLimit > 0 {
			pageSize = min(pageSize, sitesLimit-len(sites))
		}

		result, listErr := list(ctx, sitehost.ListQuery{Prefix: sitehost.NormalizeIdentifier(sitesPrefix), Limit: pageSize, Cursor: cursor})
		if listErr != nil {
			return fmt.Errorf("list sites: %w", listErr)
		}
		sites = append(sites, result.Items...)

		if result.NextCursor == "" || (sitesLimit > 0 && len(sites) >= sitesLimit) {
			break
		}
		cursor = result.NextCursor
	}

	return formatter.FormatSites(cmd.OutOrStdout(), sites)
}

func runSitesRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	formatter, err := newFormatter(sitesOutput)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	service, err := newSiteService(cfg, db, store, nil)
	if err != nil {
		return err
	}

	results := make([]removeResult, 0, len(args))
	failed := 0
	for _, identifier := range args {
		res, removeErr := service.RemoveByIdentifier(ctx, identifier)
		if removeErr != nil {
			failed++
			slog.Debug("remove site failed", "identifier", identifier, "error", removeErr)
		}
		results = append(results, removeResult{Identifier: identifier, BlobRemoved: res.BlobRemoved, Err: removeErr})
	}

	if err := formatter.FormatRemoved(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d site(s) could not be removed", failed, len(args))
	}
	return nil
}
