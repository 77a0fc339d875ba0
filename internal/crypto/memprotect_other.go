//go:build !linux && !darwin

package crypto

// LockMemory is a no-op on platforms without mlock.
func LockMemory(b []byte) {}

func unlockMemory(b []byte) {}

// DisableCoreDumps is a no-op on platforms without RLIMIT_CORE.
func DisableCoreDumps() {}
