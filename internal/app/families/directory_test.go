package families

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/househealth/househealth-api/internal/domain"
)

func TestRenameFamily(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u1, u2, outsider := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "outsider")
	fid := f.family(t, "Winston", u1)
	ctx := context.Background()
	_, err := f.eng.AddMember(ctx, fid, u2, u1)
	require.NoError(t, err)

	_, err = f.dir.RenameFamily(ctx, fid, "Other", u2, nil)
	requireKind(t, err, ErrUnauthorizedAction)
	_, err = f.dir.RenameFamily(ctx, fid, "Other", outsider, nil)
	requireKind(t, err, ErrUnauthorizedAction)
	_, err = f.dir.RenameFamily(ctx, fid, "   ", u1, nil)
	requireKind(t, err, ErrInvalidArgument)
	_, err = f.dir.RenameFamily(ctx, domain.FamilyID("nope"), "Other", u1, nil)
	requireKind(t, err, ErrFamilyNotFound)

	cur, err := f.dir.GetFamilyByID(ctx, fid)
	require.NoError(t, err)

	got, err := f.dir.RenameFamily(ctx, fid, "  Winston Household ", u1, &cur.Version)
	require.NoError(t, err)
	assert.Equal(t, "Winston Household", got.Name)
	assert.Equal(t, cur.Version+1, got.Version)

	// The version the caller saw is now stale.
	_, err = f.dir.RenameFamily(ctx, fid, "Again", u1, &cur.Version)
	requireKind(t, err, ErrConflict)
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.Retryable())

	after, err := f.dir.GetFamilyByID(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "Winston Household", after.Name)
}

func TestPermanentlyDeleteFamily(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	admin := f.admin(t, "root")
	fid := f.family(t, "Winston", u1)
	ctx := context.Background()
	_, err := f.eng.AddMember(ctx, fid, u2, u1)
	require.NoError(t, err)

	// Family ownership is not enough.
	err = f.dir.PermanentlyDeleteFamily(ctx, fid, u1)
	requireKind(t, err, ErrUnauthorizedAction)
	err = f.dir.PermanentlyDeleteFamily(ctx, fid, domain.UserID("ghost"))
	requireKind(t, err, ErrUnauthorizedAction)

	require.NoError(t, f.dir.PermanentlyDeleteFamily(ctx, fid, admin))
	exists, ms := f.snapshot(t, fid)
	assert.False(t, exists)
	assert.Empty(t, ms)

	err = f.dir.PermanentlyDeleteFamily(ctx, fid, admin)
	requireKind(t, err, ErrFamilyNotFound)
}

func TestGetFamilyDetailsAndList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u1, u2, outsider := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "outsider")
	ctx := context.Background()
	fWin := f.family(t, "Winston", u1)
	fAbe := f.family(t, "Abernathy", u1)
	_, err := f.eng.AddMember(ctx, fWin, u2, u1)
	require.NoError(t, err)

	d, err := f.dir.GetFamilyDetails(ctx, fWin, u2)
	require.NoError(t, err)
	assert.Equal(t, "Winston", d.Family.Name)
	require.Len(t, d.Members, 2)
	assert.Equal(t, "u2", d.Members[1].User.DisplayName)

	_, err = f.dir.GetFamilyDetails(ctx, fWin, outsider)
	requireKind(t, err, ErrFamilyNotFound)

	list, err := f.dir.ListFamiliesForUser(ctx, u1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, fAbe, list[0].ID)
	assert.Equal(t, fWin, list[1].ID)

	list, err = f.dir.ListFamiliesForUser(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, list)
}
