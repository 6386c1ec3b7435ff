package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) sitehost.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return sitehost.Tables{
		Sites: "sites_" + suffix,
		Users: "users_" + suffix,
		Roles: "roles_" + suffix,
	}
}

type testDB interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetSiteRegistry() sitehost.SiteRegistry
	GetUserRepo() sitehost.UserRepo
	GetRoleStore() sitehost.RoleStore
	Close() error
}

// setupTestDB opens a migrated in-memory database with unique table names.
func setupTestDB(t *testing.T) testDB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	return db
}

func setupTestRegistry(t *testing.T) sitehost.SiteRegistry {
	t.Helper()
	return setupTestDB(t).GetSiteRegistry()
}
