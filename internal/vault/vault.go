package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/nchudnovets/merezhyvo-vault/internal/crypto"
)

// Recorder receives non-secret audit events. Implementations must never be
// handed passwords or key material.
type Recorder interface {
	Record(action, detail string)
}

// Vault owns the encrypted credential store for one profile. It is
// constructed explicitly and passed by reference to dependent components;
// there is no package-level state.
type Vault struct {
	mu      sync.RWMutex
	path    string
	doc     *Document
	session *Session
	salt    []byte
	params  crypto.Params
	created time.Time
	hooks   []func()
	audit   Recorder
}

// New creates a vault handle for the profile directory. The vault file
// itself is created by Initialize.
func New(dir string) *Vault {
	return &Vault{path: filepath.Join(dir, "vault.json")}
}

// Path returns the vault file location.
func (v *Vault) Path() string { return v.path }

// SetRecorder attaches an audit recorder. May be nil.
func (v *Vault) SetRecorder(r Recorder) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.audit = r
}

// OnUnlock registers a callback fired after every successful transition to
// the unlocked state, outside the vault mutex.
func (v *Vault) OnUnlock(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hooks = append(v.hooks, fn)
}

// Status describes the externally visible vault state.
type Status struct {
	Locked          bool `json:"locked"`
	HasMaster       bool `json:"hasMaster"`
	AutoLockMinutes int  `json:"autoLockMinutes"`
	EntryCount      int  `json:"entryCount"`
}

// Status reports lock state without requiring the vault to be unlocked.
func (v *Vault) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()

	st := Status{Locked: true}
	if _, err := os.Stat(v.path); err == nil {
		st.HasMaster = true
	}
	if v.session != nil {
		st.Locked = false
		st.AutoLockMinutes = int(v.session.TTL() / time.Minute)
		st.EntryCount = len(v.doc.Entries)
	}
	return st
}

// Initialize creates a new vault file for the master password and leaves the
// vault unlocked. Fails with ErrAlreadyExists if a vault file is present.
func (v *Vault) Initialize(password string) (token string, err error) {
	v.mu.Lock()

	if _, err := os.Stat(v.path); err == nil {
		v.mu.Unlock()
		return "", ErrAlreadyExists
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0700); err != nil {
		v.mu.Unlock()
		return "", fmt.Errorf("create vault dir: %w", err)
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		v.mu.Unlock()
		return "", fmt.Errorf("generate salt: %w", err)
	}
	params := crypto.DefaultParams()
	key, err := crypto.DeriveKey([]byte(password), salt, params)
	if err != nil {
		v.mu.Unlock()
		return "", err
	}
	defer crypto.Zeroize(key)

	doc := &Document{Settings: defaultSettings()}
	now := time.Now().UTC()
	if err := v.writeLocked(doc, key, salt, params, now, now); err != nil {
		v.mu.Unlock()
		return "", err
	}

	v.doc = doc
	v.salt = salt
	v.params = params
	v.created = now

	ttl := time.Duration(doc.Settings.AutoLockMinutes) * time.Minute
	session, err := newSession(key, ttl, v.autoLock)
	if err != nil {
		v.doc = nil
		v.mu.Unlock()
		return "", err
	}
	v.session = session

	v.record("init", "")
	hooks := slices.Clone(v.hooks)
	v.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return session.Token(), nil
}

// Unlock decrypts the vault file and loads the document into memory.
// autoLockMinutes chooses the idle timeout for this session; pass a negative
// value to use the stored setting, 0 to never auto-lock. Wrong passwords and
// tampered files surface as the same ErrWrongPassword.
func (v *Vault) Unlock(password string, autoLockMinutes int) (token string, err error) {
	v.mu.Lock()

	if v.session != nil {
		v.mu.Unlock()
		return "", ErrAlreadyUnlocked
	}

	f, err := readVaultFile(v.path)
	if err != nil {
		v.mu.Unlock()
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotInitialized
		}
		// A corrupt file and a wrong password are indistinguishable to the
		// caller, to avoid oracle leakage.
		return "", ErrWrongPassword
	}

	key, err := crypto.DeriveKey([]byte(password), f.KDF.Salt, f.KDF.Params())
	if err != nil {
		v.mu.Unlock()
		return "", ErrWrongPassword
	}
	defer crypto.Zeroize(key)

	plaintext, err := crypto.Decrypt(key, f.Nonce, f.Ciphertext, f.Tag)
	if err != nil {
		v.mu.Unlock()
		return "", ErrWrongPassword
	}

	doc := &Document{}
	if err := json.Unmarshal(plaintext, doc); err != nil {
		v.mu.Unlock()
		return "", ErrWrongPassword
	}
	crypto.Zeroize(plaintext)

	minutes := autoLockMinutes
	if minutes < 0 {
		minutes = doc.Settings.AutoLockMinutes
	}

	session, err := newSession(key, time.Duration(minutes)*time.Minute, v.autoLock)
	if err != nil {
		v.mu.Unlock()
		return "", err
	}

	v.doc = doc
	v.salt = f.KDF.Salt
	v.params = f.KDF.Params()
	v.created = f.CreatedAt
	v.session = session

	v.record("unlock", "")
	hooks := slices.Clone(v.hooks)
	v.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return session.Token(), nil
}

// Lock zeroizes the key, discards the in-memory document, and cancels the
// auto-lock timer. Idempotent.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
}

func (v *Vault) lockLocked() {
	if v.session == nil {
		return
	}
	v.record("lock", "")
	v.session.Destroy()
	v.session = nil
	v.doc = nil
	v.salt = nil
}

// autoLock is the timer expiry path. The session has already zeroized its
// key; this discards the document under the vault mutex.
func (v *Vault) autoLock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return
	}
	v.record("autolock", "")
	v.session = nil
	v.doc = nil
	v.salt = nil
}

// Save re-encrypts the whole document under the existing salt and key and
// atomically replaces the vault file. Mutators never persist implicitly;
// callers batch changes and commit with one Save.
func (v *Vault) Save() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil {
		return ErrLocked
	}
	key := v.session.Key()
	if key == nil {
		return ErrLocked
	}
	defer crypto.Zeroize(key)

	if err := v.writeLocked(v.doc, key, v.salt, v.params, v.created, time.Now().UTC()); err != nil {
		return err
	}
	v.record("save", "")
	v.session.Touch()
	return nil
}

// ChangeMasterPassword verifies the old password, generates a fresh salt and
// key, and rewrites the vault file. Old ciphertext is never reused with the
// new key. The vault ends unlocked with a new session token; a rekey from
// the locked state fires the unlock hooks like any other unlock.
func (v *Vault) ChangeMasterPassword(oldPassword, newPassword string) (token string, err error) {
	v.mu.Lock()

	f, err := readVaultFile(v.path)
	if err != nil {
		v.mu.Unlock()
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotInitialized
		}
		return "", ErrWrongPassword
	}

	oldKey, err := crypto.DeriveKey([]byte(oldPassword), f.KDF.Salt, f.KDF.Params())
	if err != nil {
		v.mu.Unlock()
		return "", ErrWrongPassword
	}
	defer crypto.Zeroize(oldKey)

	plaintext, err := crypto.Decrypt(oldKey, f.Nonce, f.Ciphertext, f.Tag)
	if err != nil {
		v.mu.Unlock()
		return "", ErrWrongPassword
	}
	doc := &Document{}
	if err := json.Unmarshal(plaintext, doc); err != nil {
		v.mu.Unlock()
		return "", ErrWrongPassword
	}
	crypto.Zeroize(plaintext)

	salt, err := crypto.GenerateSalt()
	if err != nil {
		v.mu.Unlock()
		return "", fmt.Errorf("generate salt: %w", err)
	}
	params := crypto.DefaultParams()
	newKey, err := crypto.DeriveKey([]byte(newPassword), salt, params)
	if err != nil {
		v.mu.Unlock()
		return "", err
	}
	defer crypto.Zeroize(newKey)

	if err := v.writeLocked(doc, newKey, salt, params, f.CreatedAt, time.Now().UTC()); err != nil {
		v.mu.Unlock()
		return "", err
	}

	// Carry over the current auto-lock duration, or the stored setting when
	// the change happens from the locked state.
	wasLocked := v.session == nil
	ttl := time.Duration(doc.Settings.AutoLockMinutes) * time.Minute
	if v.session != nil {
		ttl = v.session.TTL()
		v.session.Destroy()
	}
	session, err := newSession(newKey, ttl, v.autoLock)
	if err != nil {
		v.session = nil
		v.doc = nil
		v.mu.Unlock()
		return "", err
	}

	v.doc = doc
	v.salt = salt
	v.params = params
	v.created = f.CreatedAt
	v.session = session
	v.record("rekey", "")

	var hooks []func()
	if wasLocked {
		hooks = slices.Clone(v.hooks)
	}
	v.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return session.Token(), nil
}

// Key returns a copy of the current vault key for vault-key container
// encryption. The caller must zeroize the copy when done.
func (v *Vault) Key() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil, ErrLocked
	}
	key := v.session.Key()
	if key == nil {
		return nil, ErrLocked
	}
	return key, nil
}

// ValidateToken checks a session token; false while locked.
func (v *Vault) ValidateToken(token string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.session != nil && v.session.ValidateToken(token)
}

// Touch resets the auto-lock idle window.
func (v *Vault) Touch() {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session != nil {
		v.session.Touch()
	}
}

// Settings returns a copy of the current settings.
func (v *Vault) Settings() (Settings, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return Settings{}, ErrLocked
	}
	v.session.Touch()
	return v.doc.Settings, nil
}

// UpdateSettings applies the present fields of the patch. Changing the
// auto-lock duration reschedules the running timer.
func (v *Vault) UpdateSettings(patch SettingsPatch) (Settings, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return Settings{}, ErrLocked
	}

	s := &v.doc.Settings
	if patch.SaveAndFill != nil {
		s.SaveAndFill = *patch.SaveAndFill
	}
	if patch.OfferToSave != nil {
		s.OfferToSave = *patch.OfferToSave
	}
	if patch.DisallowHTTP != nil {
		s.DisallowHTTP = *patch.DisallowHTTP
	}
	if patch.AutoLockMinutes != nil {
		if *patch.AutoLockMinutes < 0 {
			return Settings{}, ErrInvalidInput
		}
		s.AutoLockMinutes = *patch.AutoLockMinutes
		v.session.Reschedule(time.Duration(s.AutoLockMinutes) * time.Minute)
	}
	v.session.Touch()
	return *s, nil
}

// AddToBlacklist records an origin the user never wants capture prompts for.
func (v *Vault) AddToBlacklist(origin string) error {
	norm, err := NormalizeOrigin(origin)
	if err != nil {
		return ErrInvalidInput
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	if !slices.Contains(v.doc.Blacklist, norm) {
		v.doc.Blacklist = append(v.doc.Blacklist, norm)
	}
	v.session.Touch()
	return nil
}

// RemoveFromBlacklist drops an origin; no-op when absent.
func (v *Vault) RemoveFromBlacklist(origin string) error {
	norm, err := NormalizeOrigin(origin)
	if err != nil {
		return ErrInvalidInput
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	v.doc.Blacklist = slices.DeleteFunc(v.doc.Blacklist, func(o string) bool {
		return o == norm
	})
	v.session.Touch()
	return nil
}

// IsBlacklisted reports whether capture is suppressed for the origin.
func (v *Vault) IsBlacklisted(origin string) (bool, error) {
	norm, err := NormalizeOrigin(origin)
	if err != nil {
		return false, ErrInvalidInput
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return false, ErrLocked
	}
	return slices.Contains(v.doc.Blacklist, norm), nil
}

// Blacklist returns the blacklisted origins.
func (v *Vault) Blacklist() ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil, ErrLocked
	}
	v.session.Touch()
	return slices.Clone(v.doc.Blacklist), nil
}

func (v *Vault) writeLocked(doc *Document, key, salt []byte, params crypto.Params, created, updated time.Time) error {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	defer crypto.Zeroize(plaintext)

	nonce, ciphertext, tag, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return err
	}

	return writeVaultFile(v.path, &vaultFile{
		Schema:     SchemaTag,
		KDF:        newKDFDescriptor(salt, params),
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
		CreatedAt:  created,
		UpdatedAt:  updated,
	})
}

func (v *Vault) record(action, detail string) {
	if v.audit != nil {
		v.audit.Record(action, detail)
	}
}
