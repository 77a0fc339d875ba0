package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "test-password-123"

func tmpVault(t *testing.T) *Vault {
	t.Helper()
	v := New(filepath.Join(t.TempDir(), "profile"))
	token, err := v.Initialize(testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	t.Cleanup(v.Lock)
	return v
}

func TestInitialize_CreatesFile(t *testing.T) {
	v := tmpVault(t)
	_, err := os.Stat(v.Path())
	require.NoError(t, err, "vault file not created")

	st := v.Status()
	assert.False(t, st.Locked)
	assert.True(t, st.HasMaster)
}

func TestInitialize_AlreadyExists(t *testing.T) {
	v := tmpVault(t)
	v.Lock()
	_, err := v.Initialize(testPassword)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUnlock_WrongPassword(t *testing.T) {
	v := tmpVault(t)
	v.Lock()

	_, err := v.Unlock("wrong-password", -1)
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.True(t, v.Status().Locked, "failed unlock must leave the vault locked")
}

func TestUnlock_NotInitialized(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "profile"))
	_, err := v.Unlock(testPassword, -1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestUnlock_AlreadyUnlocked(t *testing.T) {
	v := tmpVault(t)
	_, err := v.Unlock(testPassword, -1)
	assert.ErrorIs(t, err, ErrAlreadyUnlocked)
}

func TestLock_Idempotent(t *testing.T) {
	v := tmpVault(t)
	v.Lock()
	assert.True(t, v.Status().Locked)
	v.Lock()
	assert.True(t, v.Status().Locked)
}

func TestDocument_RoundTrip(t *testing.T) {
	v := tmpVault(t)

	res, err := v.AddOrUpdate(EntryInput{
		Origin:   "https://accounts.example.com",
		Username: "bob",
		Password: "p1",
		Notes:    "work",
		Tags:     []string{" a ", "b", "a", ""},
	})
	require.NoError(t, err)
	require.NoError(t, v.AddToBlacklist("https://x.com"))
	require.NoError(t, v.Save())

	v.Lock()
	_, err = v.Unlock(testPassword, -1)
	require.NoError(t, err)

	metas, err := v.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, res.ID, metas[0].ID)
	assert.Equal(t, "https://accounts.example.com", metas[0].Origin)
	assert.Equal(t, "https://example.com", metas[0].SignonRealm)
	assert.Equal(t, "work", metas[0].Notes)
	assert.Equal(t, []string{"a", "b"}, metas[0].Tags)

	secret, err := v.GetSecret(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", secret.Username)
	assert.Equal(t, "p1", secret.Password)

	bl, err := v.Blacklist()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.com"}, bl)
}

func TestUnlock_TamperedFileLooksLikeWrongPassword(t *testing.T) {
	v := tmpVault(t)
	v.Lock()

	data, err := os.ReadFile(v.Path())
	require.NoError(t, err)
	var f map[string]any
	require.NoError(t, json.Unmarshal(data, &f))
	ct := f["ciphertext"].(string)
	// Corrupt the ciphertext with a valid-base64 substitution.
	mutated := []byte(ct)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	f["ciphertext"] = string(mutated)
	data, err = json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(v.Path(), data, 0600))

	_, err = v.Unlock(testPassword, -1)
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestSave_RequiresUnlocked(t *testing.T) {
	v := tmpVault(t)
	v.Lock()
	assert.ErrorIs(t, v.Save(), ErrLocked)
}

func TestMutations_RequireUnlocked(t *testing.T) {
	v := tmpVault(t)
	v.Lock()

	_, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, v.Remove("x"), ErrLocked)
	assert.ErrorIs(t, v.AddToBlacklist("https://a.com"), ErrLocked)
	_, err = v.List()
	assert.ErrorIs(t, err, ErrLocked)
	_, err = v.Settings()
	assert.ErrorIs(t, err, ErrLocked)
}

func TestChangeMasterPassword(t *testing.T) {
	v := tmpVault(t)
	_, err := v.AddOrUpdate(EntryInput{Origin: "https://a.com", Username: "u", Password: "p"})
	require.NoError(t, err)
	require.NoError(t, v.Save())

	saltBefore := readSalt(t, v.Path())

	token, err := v.ChangeMasterPassword(testPassword, "new-password")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NotEqual(t, saltBefore, readSalt(t, v.Path()), "rekey must generate a fresh salt")

	v.Lock()
	_, err = v.Unlock(testPassword, -1)
	assert.ErrorIs(t, err, ErrWrongPassword, "old password must stop working")

	_, err = v.Unlock("new-password", -1)
	require.NoError(t, err)
	metas, err := v.List()
	require.NoError(t, err)
	assert.Len(t, metas, 1, "entries must survive the rekey")
}

func TestChangeMasterPassword_WrongOld(t *testing.T) {
	v := tmpVault(t)
	_, err := v.ChangeMasterPassword("nope", "new-password")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestSettings_Patch(t *testing.T) {
	v := tmpVault(t)

	s, err := v.Settings()
	require.NoError(t, err)
	assert.True(t, s.OfferToSave)
	assert.Equal(t, 30, s.AutoLockMinutes)

	off := false
	mins := 0
	s, err = v.UpdateSettings(SettingsPatch{OfferToSave: &off, AutoLockMinutes: &mins})
	require.NoError(t, err)
	assert.False(t, s.OfferToSave)
	assert.Equal(t, 0, s.AutoLockMinutes)
	assert.True(t, s.SaveAndFill, "unpatched fields keep their value")

	bad := -1
	_, err = v.UpdateSettings(SettingsPatch{AutoLockMinutes: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBlacklist_AddRemove(t *testing.T) {
	v := tmpVault(t)

	require.NoError(t, v.AddToBlacklist("https://x.com"))
	require.NoError(t, v.AddToBlacklist("https://x.com")) // duplicate is a no-op

	black, err := v.IsBlacklisted("https://x.com")
	require.NoError(t, err)
	assert.True(t, black)

	bl, err := v.Blacklist()
	require.NoError(t, err)
	assert.Len(t, bl, 1)

	require.NoError(t, v.RemoveFromBlacklist("https://x.com"))
	black, err = v.IsBlacklisted("https://x.com")
	require.NoError(t, err)
	assert.False(t, black)
}

func TestOnUnlock_HookFires(t *testing.T) {
	v := tmpVault(t)
	fired := 0
	v.OnUnlock(func() { fired++ })

	v.Lock()
	_, err := v.Unlock(testPassword, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestChangeMasterPassword_FromLockedFiresUnlockHook(t *testing.T) {
	v := tmpVault(t)
	fired := 0
	v.OnUnlock(func() { fired++ })

	v.Lock()
	token, err := v.ChangeMasterPassword(testPassword, "new-password")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.False(t, v.Status().Locked, "rekey from locked must end unlocked")
	assert.Equal(t, 1, fired, "rekey from locked is also an unlock")

	// From the unlocked state there is no Locked→Unlocked transition.
	_, err = v.ChangeMasterPassword("new-password", "newer-password")
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

// rescheduleSession swaps the running session's timer for a short one so
// expiry is observable in test time.
func rescheduleSession(t *testing.T, v *Vault, ttl time.Duration) {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	require.NotNil(t, v.session)
	v.session.Reschedule(ttl)
}

func TestAutoLock_ExpiryLocksVault(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "profile"))
	token, err := v.Initialize(testPassword)
	require.NoError(t, err)
	t.Cleanup(v.Lock)

	rescheduleSession(t, v, 20*time.Millisecond)

	require.Eventually(t, func() bool { return v.Status().Locked },
		2*time.Second, 10*time.Millisecond, "expiry must lock the vault")
	assert.False(t, v.ValidateToken(token), "expiry must invalidate the token")
	_, err = v.List()
	assert.ErrorIs(t, err, ErrLocked)

	// The vault stays usable after an auto-lock.
	_, err = v.Unlock(testPassword, -1)
	require.NoError(t, err)
}

func TestAutoLock_TouchSlidesWindow(t *testing.T) {
	v := tmpVault(t)
	rescheduleSession(t, v, 150*time.Millisecond)

	// Keep touching well past the original deadline.
	deadline := time.Now().Add(450 * time.Millisecond)
	for time.Now().Before(deadline) {
		v.Touch()
		time.Sleep(25 * time.Millisecond)
	}
	assert.False(t, v.Status().Locked, "touching must keep postponing expiry")

	require.Eventually(t, func() bool { return v.Status().Locked },
		2*time.Second, 10*time.Millisecond, "idle vault must still expire")
}

func TestAutoLock_ZeroMeansNever(t *testing.T) {
	v := tmpVault(t)
	rescheduleSession(t, v, 0)

	time.Sleep(100 * time.Millisecond)
	st := v.Status()
	assert.False(t, st.Locked)
	assert.Equal(t, 0, st.AutoLockMinutes)
}

func TestUpdateSettings_ReschedulesAutoLock(t *testing.T) {
	v := tmpVault(t)

	mins := 0
	_, err := v.UpdateSettings(SettingsPatch{AutoLockMinutes: &mins})
	require.NoError(t, err)
	assert.Equal(t, 0, v.Status().AutoLockMinutes, "patch must re-arm the running session")

	mins = 5
	_, err = v.UpdateSettings(SettingsPatch{AutoLockMinutes: &mins})
	require.NoError(t, err)
	assert.Equal(t, 5, v.Status().AutoLockMinutes)
}

func readSalt(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var f struct {
		KDF struct {
			Salt string `json:"salt"`
		} `json:"kdf"`
	}
	require.NoError(t, json.Unmarshal(data, &f))
	return f.KDF.Salt
}
