package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

func seedEntries(t *testing.T, v *vault.Vault) {
	t.Helper()
	for _, e := range []vault.EntryInput{
		{Origin: "https://a.com", Username: "bob", Password: "p1", Notes: "work", Tags: []string{"x"}},
		{Origin: "https://b.com", Username: "carol", Password: "p2"},
	} {
		_, err := v.AddOrUpdate(e)
		require.NoError(t, err)
	}
}

func TestContainer_RoundTrip_VaultKey(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)

	data, err := ExportContainer(src, "")
	require.NoError(t, err)

	res, err := ImportContainer(src, data, "replace", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Zero(t, res.Skipped)

	metas, err := src.List()
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestContainer_RoundTrip_Password(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)

	data, err := ExportContainer(src, "export-pw")
	require.NoError(t, err)

	// A different vault, with a different master key, can import it.
	dst := tmpVault(t)
	res, err := ImportContainer(dst, data, "add", "export-pw")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	metas, err := dst.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)

	var bobID string
	for _, m := range metas {
		if m.Username == "bob" {
			bobID = m.ID
			assert.Equal(t, "work", m.Notes)
			assert.Equal(t, []string{"x"}, m.Tags)
		}
	}
	require.NotEmpty(t, bobID)
	secret, err := dst.GetSecret(bobID)
	require.NoError(t, err)
	assert.Equal(t, "p1", secret.Password)
}

func TestContainer_WrongPassword(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)
	data, err := ExportContainer(src, "export-pw")
	require.NoError(t, err)

	_, err = ImportContainer(src, data, "add", "wrong")
	assert.ErrorIs(t, err, vault.ErrWrongPassword)
}

func TestContainer_PasswordRequired(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)
	data, err := ExportContainer(src, "export-pw")
	require.NoError(t, err)

	_, err = ImportContainer(src, data, "add", "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

func TestContainer_MissingSalt(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)
	data, err := ExportContainer(src, "export-pw")
	require.NoError(t, err)

	var f map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &f))
	var kdf map[string]any
	require.NoError(t, json.Unmarshal(f["kdf"], &kdf))
	delete(kdf, "salt")
	f["kdf"], _ = json.Marshal(kdf)
	data, err = json.Marshal(f)
	require.NoError(t, err)

	_, err = ImportContainer(src, data, "add", "export-pw")
	assert.ErrorIs(t, err, ErrMissingSalt)
}

func TestContainer_VaultKeyNeedsUnlock(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)
	data, err := ExportContainer(src, "")
	require.NoError(t, err)

	src.Lock()
	_, err = ImportContainer(src, data, "add", "")
	assert.ErrorIs(t, err, vault.ErrLocked)

	_, err = ExportContainer(src, "pw")
	assert.ErrorIs(t, err, vault.ErrLocked)
}

func TestContainer_Unrecognized(t *testing.T) {
	v := tmpVault(t)

	_, err := ImportContainer(v, []byte("not even json"), "add", "")
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = ImportContainer(v, []byte(`{"format":"something-else","schema":1}`), "add", "")
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestContainer_SkipsIncompleteEntries(t *testing.T) {
	src := tmpVault(t)
	seedEntries(t, src)

	data, err := ExportContainer(src, "")
	require.NoError(t, err)

	// Blank one entry's username and re-export; the re-import must skip it.
	dst := tmpVault(t)
	_, err = ImportContainer(dst, data, "add", "")
	require.NoError(t, err)
	metas, err := dst.List()
	require.NoError(t, err)
	for _, m := range metas {
		if m.Username == "carol" {
			_, err = dst.AddOrUpdate(vault.EntryInput{ID: m.ID, Origin: m.Origin, Username: "", Password: "p2"})
			require.NoError(t, err)
		}
	}
	data, err = ExportContainer(dst, "")
	require.NoError(t, err)

	res, err := ImportContainer(dst, data, "replace", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestDetectFormat(t *testing.T) {
	v := tmpVault(t)
	seedEntries(t, v)

	container, err := ExportContainer(v, "")
	require.NoError(t, err)
	assert.Equal(t, FormatContainer, DetectFormat(container))

	csvOut, err := ExportCSV(v)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, DetectFormat([]byte(csvOut)))

	assert.Equal(t, FormatCSV, DetectFormat([]byte("\ufeffURL,User,Pass\r\nhttps://a.com,u,p\r\n")))
	assert.Equal(t, FormatUnknown, DetectFormat([]byte("just some text")))
	assert.Equal(t, FormatUnknown, DetectFormat([]byte(`{"format":"other"}`)))
}
