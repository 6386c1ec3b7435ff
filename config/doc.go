// Package config loads and validates sitehost configuration.
//
// YAML files, environment variables and CLI flags are merged with viper
// and checked with go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s), merged left to right
//  3. Environment variables (SITEHOST_ prefix)
//  4. CLI flags that were explicitly set
//
// When no file is given, config.yaml in the working directory is read if
// present.
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// Keys map to environment variables by upper-casing them and replacing
// dots with underscores:
//   - server.port → SITEHOST_SERVER_PORT
//   - storage.s3.bucket → SITEHOST_STORAGE_S3_BUCKET
//   - auth.session_secret → SITEHOST_AUTH_SESSION_SECRET
//
// # Configuration Structure
//
//   - env: dev (coloured text logs) or prod (JSON logs)
//   - server: port, base_url, max_upload_size, secure_cookies
//   - database: type (sqlite/postgres), dsn, auto_migrate, table names
//   - storage: backend (filesystem/s3/gcs/azure) and its settings
//   - auth: session secret, TTL and retired keys; password policy; sign-in rate
//   - service: blob cleanup timeout and the orphan sweeper schedule
//   - cors, metrics, log
//
// The session secret is optional here because only the serve command
// signs sessions; it is rejected when set shorter than 32 characters.
package config
