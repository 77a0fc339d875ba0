package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrUpdate_Insert(t *testing.T) {
	v := tmpVault(t)

	res, err := v.AddOrUpdate(EntryInput{
		Origin:   "https://login.example.com/signin?next=/home",
		Username: "alice",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.Updated)

	metas, err := v.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "https://login.example.com", metas[0].Origin, "origin is normalized")
	assert.Equal(t, "https://example.com", metas[0].SignonRealm, "realm defaults to scheme + eTLD+1")
	assert.Equal(t, 1, metas[0].UseCount)
}

func TestAddOrUpdate_UniqueIDs(t *testing.T) {
	v := tmpVault(t)

	a, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	require.NoError(t, err)
	b, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID, "inserts without an id always create a new entry")
}

func TestAddOrUpdate_Update(t *testing.T) {
	v := tmpVault(t)

	res, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	require.NoError(t, err)

	upd, err := v.AddOrUpdate(EntryInput{
		ID:       res.ID,
		Origin:   "https://a.com",
		Username: "u",
		Password: "p2",
		Notes:    "rotated",
	})
	require.NoError(t, err)
	assert.True(t, upd.Updated)
	assert.Equal(t, res.ID, upd.ID, "updates keep the id stable")

	metas, err := v.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 2, metas[0].UseCount, "update increments useCount by exactly 1")
	assert.False(t, metas[0].UpdatedAt.Before(metas[0].CreatedAt))

	secret, err := v.GetSecret(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "p2", secret.Password)
}

func TestAddOrUpdate_UnknownIDInserts(t *testing.T) {
	v := tmpVault(t)

	res, err := v.AddOrUpdate(EntryInput{
		ID:       "no-such-entry",
		Origin:   "https://a.com",
		Username: "u",
		Password: "p",
	})
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.NotEqual(t, "no-such-entry", res.ID, "unknown id falls back to insert with a fresh id")
}

func TestAddOrUpdate_Validation(t *testing.T) {
	v := tmpVault(t)

	_, err := v.AddOrUpdate(EntryInput{Origin: "", Username: "u", Password: "p"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetSecret_NotFound(t *testing.T) {
	v := tmpVault(t)
	_, err := v.GetSecret("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	v := tmpVault(t)
	assert.NoError(t, v.Remove("missing"))
}

func TestList_NeverExposesPasswords(t *testing.T) {
	v := tmpVault(t)
	_, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	require.NoError(t, err)

	metas, err := v.List()
	require.NoError(t, err)
	// EntryMeta has no password field; check the username survived the
	// projection as a sanity guard.
	assert.Equal(t, "u", metas[0].Username)
}

func TestFindCredential(t *testing.T) {
	v := tmpVault(t)
	_, err := v.AddOrUpdate(EntryInput{Origin: "https://accounts.example.com", Username: "bob", Password: "p"})
	require.NoError(t, err)

	meta, ok, err := v.FindCredential("https://example.com", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", meta.Username)

	_, ok, err = v.FindCredential("https://example.com", "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchForAutofill_RealmAndSite(t *testing.T) {
	v := tmpVault(t)

	_, err := v.AddOrUpdate(EntryInput{Origin: "https://example.com", Username: "bob", Password: "p"})
	require.NoError(t, err)
	_, err = v.AddOrUpdate(EntryInput{Origin: "https://example.org", Username: "eve", Password: "p"})
	require.NoError(t, err)

	// Exact realm match.
	matches, err := v.MatchForAutofill("https://example.com", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "bob", matches[0].Username)

	// Same eTLD+1 via a subdomain focus context.
	realm, err := SignonRealm("https://accounts.example.com")
	require.NoError(t, err)
	matches, err = v.MatchForAutofill(realm, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "bob", matches[0].Username)
}

func TestMatchForAutofill_Cap(t *testing.T) {
	v := tmpVault(t)
	for _, u := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: u, Password: "p"})
		require.NoError(t, err)
	}

	matches, err := v.MatchForAutofill("https://a.com", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 5)
}
