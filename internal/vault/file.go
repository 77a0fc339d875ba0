package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nchudnovets/merezhyvo-vault/internal/crypto"
)

// SchemaTag identifies the on-disk vault file format.
const SchemaTag = "merezhyvo-vault/1"

// KDFDescriptor records the key-derivation inputs next to the ciphertext so
// the file stays decryptable if future defaults change. The salt is
// generated once per master password and reused across saves.
type KDFDescriptor struct {
	Name string `json:"name"`
	Salt []byte `json:"salt"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
	Bits int    `json:"bits"`
}

// Params converts the descriptor to engine cost parameters.
func (k KDFDescriptor) Params() crypto.Params {
	return crypto.Params{N: k.N, R: k.R, P: k.P, Bits: k.Bits}
}

func newKDFDescriptor(salt []byte, p crypto.Params) KDFDescriptor {
	return KDFDescriptor{Name: "scrypt", Salt: salt, N: p.N, R: p.R, P: p.P, Bits: p.Bits}
}

// vaultFile is the single persisted artifact: the whole document encrypted
// as one payload.
type vaultFile struct {
	Schema     string        `json:"schema"`
	KDF        KDFDescriptor `json:"kdf"`
	Nonce      []byte        `json:"nonce"`
	Tag        []byte        `json:"authTag"`
	Ciphertext []byte        `json:"ciphertext"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func readVaultFile(path string) (*vaultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f vaultFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing vault file: %w", err)
	}
	if f.Schema != SchemaTag {
		return nil, fmt.Errorf("unsupported vault schema %q", f.Schema)
	}
	return &f, nil
}

// writeVaultFile atomically replaces the vault file: write to a temp file in
// the same directory, fsync, then rename. A crash mid-write leaves the
// previous file intact.
func writeVaultFile(path string, f *vaultFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding vault file: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing vault file: %w", err)
	}
	return nil
}
