package vault

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryInput is the caller-supplied shape for AddOrUpdate. A present ID that
// matches an existing entry updates it in place; otherwise a new entry with
// a fresh random id is created.
type EntryInput struct {
	ID          string   `json:"id,omitempty"`
	Origin      string   `json:"origin"`
	SignonRealm string   `json:"signonRealm,omitempty"`
	FormAction  string   `json:"formAction,omitempty"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpsertResult reports the outcome of AddOrUpdate.
type UpsertResult struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

// Secret is the only projection carrying a plaintext password across the
// vault boundary. Every call site is sensitive.
type Secret struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// List returns password-free projections of all entries.
func (v *Vault) List() ([]EntryMeta, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil, ErrLocked
	}
	metas := make([]EntryMeta, 0, len(v.doc.Entries))
	for _, e := range v.doc.Entries {
		metas = append(metas, e.Meta())
	}
	v.session.Touch()
	return metas, nil
}

// GetSecret reveals a single entry's credentials.
func (v *Vault) GetSecret(id string) (Secret, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return Secret{}, ErrLocked
	}
	for _, e := range v.doc.Entries {
		if e.ID == id {
			v.session.Touch()
			return Secret{Username: e.Username, Password: e.Password}, nil
		}
	}
	return Secret{}, ErrNotFound
}

// AddOrUpdate upserts an entry. Updates bump updatedAt and lastUsedAt and
// increment useCount; inserts start at useCount 1. The mutation is in-memory
// only — the caller commits with Save.
func (v *Vault) AddOrUpdate(input EntryInput) (UpsertResult, error) {
	origin, err := NormalizeOrigin(input.Origin)
	if err != nil || input.Password == "" {
		return UpsertResult{}, ErrInvalidInput
	}
	realm := strings.TrimSpace(input.SignonRealm)
	if realm == "" {
		if realm, err = SignonRealm(origin); err != nil {
			return UpsertResult{}, ErrInvalidInput
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return UpsertResult{}, ErrLocked
	}

	now := time.Now().UTC()

	if input.ID != "" {
		for i := range v.doc.Entries {
			e := &v.doc.Entries[i]
			if e.ID != input.ID {
				continue
			}
			e.Origin = origin
			e.SignonRealm = realm
			e.FormAction = input.FormAction
			e.Username = input.Username
			e.Password = input.Password
			e.Notes = input.Notes
			e.Tags = normalizeTags(input.Tags)
			e.UpdatedAt = now
			e.LastUsedAt = now
			e.UseCount++
			v.session.Touch()
			return UpsertResult{ID: e.ID, Updated: true}, nil
		}
	}

	entry := Entry{
		ID:          uuid.NewString(),
		Origin:      origin,
		SignonRealm: realm,
		FormAction:  input.FormAction,
		Username:    input.Username,
		Password:    input.Password,
		Notes:       input.Notes,
		Tags:        normalizeTags(input.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
		LastUsedAt:  now,
		UseCount:    1,
	}
	v.doc.Entries = append(v.doc.Entries, entry)
	v.session.Touch()
	return UpsertResult{ID: entry.ID, Updated: false}, nil
}

// Remove deletes an entry; removing an unknown id is a no-op.
func (v *Vault) Remove(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	v.doc.Entries = slices.DeleteFunc(v.doc.Entries, func(e Entry) bool {
		return e.ID == id
	})
	v.session.Touch()
	return nil
}

// RemoveAllEntries clears the entry list (used by replace-mode imports).
func (v *Vault) RemoveAllEntries() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	v.doc.Entries = nil
	v.session.Touch()
	return nil
}

// ExportEntries returns full copies of all entries, passwords included.
// Only the import/export codec should call it.
func (v *Vault) ExportEntries() ([]Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil, ErrLocked
	}
	entries := make([]Entry, len(v.doc.Entries))
	copy(entries, v.doc.Entries)
	for i := range entries {
		entries[i].Tags = slices.Clone(entries[i].Tags)
	}
	v.session.Touch()
	return entries, nil
}

// FindCredential looks up an entry by (signonRealm, username), the identity
// used by the capture workflow to decide between "save new" and "update".
func (v *Vault) FindCredential(signonRealm, username string) (EntryMeta, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return EntryMeta{}, false, ErrLocked
	}
	for _, e := range v.doc.Entries {
		if e.SignonRealm == signonRealm && e.Username == username {
			return e.Meta(), true, nil
		}
	}
	return EntryMeta{}, false, nil
}

// MatchForAutofill gathers candidates for a focus context: realm-equal
// entries first, then entries sharing the context's eTLD+1, deduplicated and
// capped at limit.
func (v *Vault) MatchForAutofill(signonRealm string, limit int) ([]EntryMeta, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil, ErrLocked
	}

	var out []EntryMeta
	seen := make(map[string]bool)
	for _, e := range v.doc.Entries {
		if len(out) >= limit {
			return out, nil
		}
		if e.SignonRealm == signonRealm {
			seen[e.ID] = true
			out = append(out, e.Meta())
		}
	}
	for _, e := range v.doc.Entries {
		if len(out) >= limit {
			break
		}
		if !seen[e.ID] && SameSite(e.Origin, signonRealm) {
			seen[e.ID] = true
			out = append(out, e.Meta())
		}
	}
	v.session.Touch()
	return out, nil
}
