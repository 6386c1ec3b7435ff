// Package sitehost publishes uploaded HTML documents as addressable sites and
// resolves them for viewing inside an isolated rendering context.
//
// A site is a single uploaded file bound to a globally unique, human-chosen
// identifier. Publishing writes the file to a content store under an
// owner-namespaced key and then upserts a registry record that claims the
// identifier. Resolution looks the identifier up, fetches the blob and
// classifies the result into one of four outcomes.
//
// # Key Components
//
//   - SiteService: publish, resolve, list, delete and sweep workflows
//   - AccountService: sign-in, session lookup, provisioning and first-run setup
//   - SiteRegistry: interface for identifier records (PostgreSQL, SQLite)
//   - ContentStore: interface for blob storage (filesystem, S3, GCS, Azure)
//   - IdentityProvider: interface for credential checks and session tokens
//   - Authorize: pure role guard evaluated before any data access
//
// # Example Usage
//
//	sites, err := sitehost.NewSiteService(registry, store, sitehost.ServiceConfig{
//	    BaseURL: "https://sites.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	site, err := sites.Publish(ctx, principal, sitehost.PublishRequest{
//	    Identifier: "my-page",
//	    Filename:   "index.html",
//	    MimeType:   "text/html",
//	    Content:    reader,
//	})
//
//	res := sites.Resolve(ctx, "my-page")
//	if res.Outcome == sitehost.OutcomeRendered {
//	    fmt.Println(res.Content)
//	}
//
// See the http package for the browser screens and JSON API, and the
// database package for registry backends.
package sitehost
