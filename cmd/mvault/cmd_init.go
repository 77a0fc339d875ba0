package main

import (
	"fmt"

	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

// init creates the vault directly, without a running server: the key is
// derived, the empty document written, and everything locked again before
// the process exits.
func cmdInit() {
	pw, err := promptPassword("Master password: ")
	if err != nil {
		fatal("reading password: %v", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		fatal("reading password: %v", err)
	}
	if pw != confirm {
		fatal("passwords do not match")
	}
	if len(pw) < 8 {
		fatal("master password must be at least 8 characters")
	}

	v := vault.New(vaultDir())
	if _, err := v.Initialize(pw); err != nil {
		fatal("%v", err)
	}
	v.Lock()

	fmt.Printf("Vault created at %s\n", v.Path())
	fmt.Println("Run 'mvault serve' and 'mvault unlock' to start using it.")
}
