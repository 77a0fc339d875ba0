package autofill

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

const testPassword = "test-password-123"

func testResolver(t *testing.T) (*Resolver, *vault.Vault) {
	t.Helper()
	v := vault.New(filepath.Join(t.TempDir(), "profile"))
	_, err := v.Initialize(testPassword)
	require.NoError(t, err)
	t.Cleanup(v.Lock)
	return New(v), v
}

func TestResolve_NoContext(t *testing.T) {
	r, _ := testResolver(t)
	res := r.Resolve("surface-1")
	assert.False(t, res.Available)
}

func TestResolve_Locked(t *testing.T) {
	r, v := testResolver(t)
	r.NotifyFocus("surface-1", Context{Origin: "https://example.com", Field: "password"})
	v.Lock()

	res := r.Resolve("surface-1")
	assert.True(t, res.Available)
	assert.True(t, res.Locked)
	assert.Empty(t, res.Options)
	assert.Equal(t, "example.com", res.SiteName)
}

func TestResolve_MatchesRealmAndSite(t *testing.T) {
	r, v := testResolver(t)
	_, err := v.AddOrUpdate(vault.EntryInput{Origin: "https://example.com", Username: "bob", Password: "p"})
	require.NoError(t, err)
	_, err = v.AddOrUpdate(vault.EntryInput{Origin: "https://example.org", Username: "eve", Password: "p"})
	require.NoError(t, err)

	// Focus on a subdomain of the stored entry's site.
	r.NotifyFocus("surface-1", Context{Origin: "https://accounts.example.com/login", Field: "password"})

	res := r.Resolve("surface-1")
	require.True(t, res.Available)
	assert.False(t, res.Locked)
	require.Len(t, res.Options, 1)
	assert.Equal(t, "bob", res.Options[0].Username)
	assert.Equal(t, "example.com", res.Options[0].SiteName)
}

func TestResolve_CapsOptions(t *testing.T) {
	r, v := testResolver(t)
	for _, u := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := v.AddOrUpdate(vault.EntryInput{Origin: "https://a.com", Username: u, Password: "p"})
		require.NoError(t, err)
	}
	r.NotifyFocus("surface-1", Context{Origin: "https://a.com", Field: "password"})

	res := r.Resolve("surface-1")
	require.True(t, res.Available)
	assert.Len(t, res.Options, maxOptions)
}

func TestResolve_Blur(t *testing.T) {
	r, _ := testResolver(t)
	r.NotifyFocus("surface-1", Context{Origin: "https://example.com", Field: "password"})
	r.NotifyBlur("surface-1")

	res := r.Resolve("surface-1")
	assert.False(t, res.Available)
}

func TestResolve_ContextExpires(t *testing.T) {
	r, _ := testResolver(t)

	current := time.Now()
	r.now = func() time.Time { return current }

	r.NotifyFocus("surface-1", Context{Origin: "https://example.com", Field: "password"})
	current = current.Add(defaultTTL + time.Second)

	res := r.Resolve("surface-1")
	assert.False(t, res.Available, "stale contexts must not produce offers")
}

func TestResolve_SaveAndFillDisabled(t *testing.T) {
	r, v := testResolver(t)
	off := false
	_, err := v.UpdateSettings(vault.SettingsPatch{SaveAndFill: &off})
	require.NoError(t, err)

	r.NotifyFocus("surface-1", Context{Origin: "https://example.com", Field: "password"})
	res := r.Resolve("surface-1")
	assert.False(t, res.Available)
}

func TestResolve_SurfacesAreIndependent(t *testing.T) {
	r, v := testResolver(t)
	_, err := v.AddOrUpdate(vault.EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	require.NoError(t, err)

	r.NotifyFocus("surface-1", Context{Origin: "https://a.com", Field: "password"})
	r.NotifyFocus("surface-2", Context{Origin: "https://b.com", Field: "password"})

	res1 := r.Resolve("surface-1")
	require.True(t, res1.Available)
	assert.Len(t, res1.Options, 1)

	res2 := r.Resolve("surface-2")
	require.True(t, res2.Available)
	assert.Empty(t, res2.Options)
}
