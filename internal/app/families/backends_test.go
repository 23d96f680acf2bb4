package families

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memfamilyrepo "github.com/househealth/househealth-api/internal/adapters/memory/familyrepo"
	memuserrepo "github.com/househealth/househealth-api/internal/adapters/memory/userrepo"
	pgfamilyrepo "github.com/househealth/househealth-api/internal/adapters/postgres/familyrepo"
	"github.com/househealth/househealth-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/househealth/househealth-api/internal/adapters/postgres/userrepo"
	"github.com/househealth/househealth-api/internal/adapters/sqlite"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

// backend opens a fresh pair of repositories for one fixture.
type backend struct {
	name string
	// uuidIDs is set when the store keys users by UUID and shares rows across tests.
	uuidIDs bool
	open    func(t *testing.T) (familyrepo.Repository, userrepo.Repository)
}

var memoryBackend = backend{
	name: "memory",
	open: func(*testing.T) (familyrepo.Repository, userrepo.Repository) {
		return memfamilyrepo.NewRepo(), memuserrepo.NewRepo()
	},
}

var sqliteBackend = backend{
	name: "sqlite",
	open: func(t *testing.T) (familyrepo.Repository, userrepo.Repository) {
		t.Helper()
		db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "families.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return sqlite.NewFamilyRepo(db), sqlite.NewUserRepo(db)
	},
}

var postgresBackend = backend{
	name:    "postgres",
	uuidIDs: true,
	open: func(t *testing.T) (familyrepo.Repository, userrepo.Repository) {
		t.Helper()
		pool := testutil.OpenMigratedPool(t)
		return pgfamilyrepo.NewRepo(pool), pguserrepo.NewRepo(pool)
	},
}

// forEachBackend runs fn as a parallel subtest per store. Postgres is skipped unless
// POSTGRES_TEST_URL is set.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Helper()
	for _, b := range []backend{memoryBackend, sqliteBackend, postgresBackend} {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()
			fn(t, b)
		})
	}
}

// The user directory and the family store share one connection on sqlite; reading a user
// from inside a membership transaction would wait on itself.
func TestAddMember_CompletesOnSingleConnectionStore(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, b backend) {
		f := newFixtureOn(t, b)
		u1, u2 := f.user(t, "u1"), f.user(t, "u2")
		fid := f.family(t, "Winston", u1)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		m, err := f.eng.AddMember(ctx, fid, u2, u1)
		require.NoError(t, err)
		require.Equal(t, u2, m.UserID)

		_, err = f.eng.AddOwner(ctx, fid, u2, u1)
		require.NoError(t, err)
		require.NoError(t, f.eng.LeaveFamily(ctx, fid, u1))
		f.requireInvariants(t, fid)
	})
}
