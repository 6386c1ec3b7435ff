// Package database opens the registry backend that stores sites, users and
// role assignments.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for multi-instance deployments
//   - SQLite: modernc.org/sqlite, for development and single-node hosting
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "sitehost.db",
//	    Tables: sitehost.DefaultTables(),
//	}
//
//	db, err := database.Open(ctx, cfg, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	registry := db.GetSiteRegistry()
//
// Connect only opens the backend. Open also migrates (when asked) and
// validates the schema, which is what the server and CLI use.
package database
