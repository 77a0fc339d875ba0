package codec

import (
	"encoding/json"
	"time"

	"github.com/nchudnovets/merezhyvo-vault/internal/crypto"
	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

const (
	// ContainerFormatTag identifies the encrypted interchange container.
	ContainerFormatTag = "merezhyvo-vault-export"

	containerSchema   = 1
	maxContainerBytes = 50 << 20 // 50 MB
)

// containerFile mirrors the vault file layout. A nil KDF descriptor means
// the payload was encrypted under the vault's own master key; a present one
// means password-based encryption with a fresh salt.
type containerFile struct {
	Format     string               `json:"format"`
	Schema     int                  `json:"schema"`
	KDF        *vault.KDFDescriptor `json:"kdf,omitempty"`
	Nonce      []byte               `json:"nonce"`
	Tag        []byte               `json:"authTag"`
	Ciphertext []byte               `json:"ciphertext"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// containerPayload is the plaintext document inside the container.
type containerPayload struct {
	Entries []vault.Entry `json:"entries"`
}

// ExportContainer serializes all entries and encrypts them. With a password
// the key is derived from a fresh salt and the KDF parameters are recorded
// in the container; without one the vault's current master key is used and
// no salt is written.
func ExportContainer(v *vault.Vault, password string) ([]byte, error) {
	entries, err := v.ExportEntries()
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(containerPayload{Entries: entries})
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(plaintext)

	f := containerFile{
		Format:    ContainerFormatTag,
		Schema:    containerSchema,
		CreatedAt: time.Now().UTC(),
	}

	var key []byte
	if password != "" {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		params := crypto.DefaultParams()
		if key, err = crypto.DeriveKey([]byte(password), salt, params); err != nil {
			return nil, err
		}
		kdf := vault.KDFDescriptor{Name: "scrypt", Salt: salt, N: params.N, R: params.R, P: params.P, Bits: params.Bits}
		f.KDF = &kdf
	} else {
		if key, err = v.Key(); err != nil {
			return nil, err
		}
	}
	defer crypto.Zeroize(key)

	f.Nonce, f.Ciphertext, f.Tag, err = crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

// ImportContainer decrypts a container and upserts its entries. Vault-key
// containers decrypt with the currently unlocked vault's key; password-based
// ones need the password from the caller. Entries missing any of origin,
// realm, username, or password are skipped.
func ImportContainer(v *vault.Vault, data []byte, mode, password string) (ImportResult, error) {
	if mode != "add" && mode != "replace" {
		return ImportResult{}, ErrInvalidMode
	}
	if len(data) > maxContainerBytes {
		return ImportResult{}, ErrSizeLimit
	}

	var f containerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return ImportResult{}, ErrUnrecognizedFormat
	}
	if f.Format != ContainerFormatTag || f.Schema != containerSchema {
		return ImportResult{}, ErrUnrecognizedFormat
	}

	var key []byte
	var err error
	if f.KDF == nil {
		if key, err = v.Key(); err != nil {
			return ImportResult{}, err
		}
	} else {
		if password == "" {
			return ImportResult{}, ErrPasswordRequired
		}
		if len(f.KDF.Salt) == 0 {
			return ImportResult{}, ErrMissingSalt
		}
		if key, err = crypto.DeriveKey([]byte(password), f.KDF.Salt, f.KDF.Params()); err != nil {
			return ImportResult{}, vault.ErrWrongPassword
		}
	}
	defer crypto.Zeroize(key)

	plaintext, err := crypto.Decrypt(key, f.Nonce, f.Ciphertext, f.Tag)
	if err != nil {
		return ImportResult{}, vault.ErrWrongPassword
	}
	defer crypto.Zeroize(plaintext)

	var payload containerPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return ImportResult{}, ErrUnrecognizedFormat
	}

	if mode == "replace" {
		if err := v.RemoveAllEntries(); err != nil {
			return ImportResult{}, err
		}
	}

	var res ImportResult
	for _, e := range payload.Entries {
		if e.Origin == "" || e.SignonRealm == "" || e.Username == "" || e.Password == "" {
			res.Skipped++
			continue
		}
		if err := upsertRow(v, vault.EntryInput{
			Origin:      e.Origin,
			SignonRealm: e.SignonRealm,
			FormAction:  e.FormAction,
			Username:    e.Username,
			Password:    e.Password,
			Notes:       e.Notes,
			Tags:        e.Tags,
		}); err != nil {
			res.Skipped++
			continue
		}
		res.Imported++
	}

	if err := v.Save(); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
