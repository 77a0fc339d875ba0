package vault

import (
	"slices"
	"strings"
	"time"
)

// Document is the decrypted vault payload. It exists only in memory while
// the vault is unlocked and is always persisted as a whole.
type Document struct {
	Entries   []Entry  `json:"entries"`
	Blacklist []string `json:"blacklist"`
	Settings  Settings `json:"settings"`
}

// Entry is a stored credential.
type Entry struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	SignonRealm string    `json:"signonRealm"`
	FormAction  string    `json:"formAction,omitempty"`
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	Notes       string    `json:"notes,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	UseCount    int       `json:"useCount"`
}

// EntryMeta is Entry minus the password — the only projection that crosses
// the vault boundary outside an explicit single-entry reveal.
type EntryMeta struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	SignonRealm string    `json:"signonRealm"`
	FormAction  string    `json:"formAction,omitempty"`
	Username    string    `json:"username"`
	Notes       string    `json:"notes,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	UseCount    int       `json:"useCount"`
}

// Meta projects the entry to its password-free form.
func (e Entry) Meta() EntryMeta {
	return EntryMeta{
		ID:          e.ID,
		Origin:      e.Origin,
		SignonRealm: e.SignonRealm,
		FormAction:  e.FormAction,
		Username:    e.Username,
		Notes:       e.Notes,
		Tags:        slices.Clone(e.Tags),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		LastUsedAt:  e.LastUsedAt,
		UseCount:    e.UseCount,
	}
}

// Settings are the user-tunable vault preferences.
type Settings struct {
	SaveAndFill     bool `json:"saveAndFill"`
	OfferToSave     bool `json:"offerToSave"`
	DisallowHTTP    bool `json:"disallowHttp"`
	AutoLockMinutes int  `json:"autoLockMinutes"` // 0 = never
}

// SettingsPatch updates only the fields that are present.
type SettingsPatch struct {
	SaveAndFill     *bool `json:"saveAndFill,omitempty"`
	OfferToSave     *bool `json:"offerToSave,omitempty"`
	DisallowHTTP    *bool `json:"disallowHttp,omitempty"`
	AutoLockMinutes *int  `json:"autoLockMinutes,omitempty"`
}

func defaultSettings() Settings {
	return Settings{
		SaveAndFill:     true,
		OfferToSave:     true,
		DisallowHTTP:    false,
		AutoLockMinutes: 30,
	}
}

// normalizeTags trims, drops empties, and deduplicates while keeping order.
func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
