package vault

import "errors"

var (
	ErrLocked          = errors.New("vault is locked")
	ErrAlreadyUnlocked = errors.New("vault is already unlocked")
	ErrNotInitialized  = errors.New("vault is not initialized")
	ErrAlreadyExists   = errors.New("vault already exists")
	ErrWrongPassword   = errors.New("wrong master password")
	ErrNotFound        = errors.New("entry not found")
	ErrInvalidInput    = errors.New("missing required fields")
)
