//go:build linux || darwin

package crypto

import "syscall"

// LockMemory pins the byte slice's pages to prevent swapping key material to
// disk. Best-effort: failure is silently ignored (process may lack
// CAP_IPC_LOCK).
func LockMemory(b []byte) {
	_ = syscall.Mlock(b)
}

func unlockMemory(b []byte) {
	_ = syscall.Munlock(b)
}

// DisableCoreDumps sets RLIMIT_CORE to 0 so key material cannot appear in a
// core dump. Best-effort: failure is silently ignored.
func DisableCoreDumps() {
	_ = syscall.Setrlimit(syscall.RLIMIT_CORE, &syscall.Rlimit{Cur: 0, Max: 0})
}
