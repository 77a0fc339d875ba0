package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/nchudnovets/merezhyvo-vault/internal/crypto"
)

// Session holds the derived vault key and the auto-lock timer for one
// unlocked period. The key lives nowhere else.
type Session struct {
	mu     sync.Mutex
	token  string
	key    []byte
	timer  *time.Timer
	lockFn func()
	ttl    time.Duration // 0 = never auto-lock
}

// newSession copies the key, arms the auto-lock timer, and issues a session
// token for the request surface.
func newSession(key []byte, ttl time.Duration, lockFn func()) (*Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, err
	}

	s := &Session{
		token:  hex.EncodeToString(tokenBytes),
		lockFn: lockFn,
		ttl:    ttl,
	}
	// Copy so the caller can zeroize its own buffer independently.
	s.key = make([]byte, len(key))
	copy(s.key, key)
	crypto.LockMemory(s.key)
	crypto.DisableCoreDumps()

	if ttl > 0 {
		s.timer = time.AfterFunc(ttl, s.expire)
	}
	return s, nil
}

// Token returns the session token string.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Key returns a copy of the vault key, or nil if the session is destroyed.
func (s *Session) Key() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil
	}
	cp := make([]byte, len(s.key))
	copy(cp, s.key)
	return cp
}

// TTL returns the current auto-lock duration (0 = never).
func (s *Session) TTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl
}

// ValidateToken checks a token using constant-time comparison.
func (s *Session) ValidateToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) == 1
}

// Touch resets the idle window. Every successful vault-touching operation
// calls it, making auto-lock a sliding timeout rather than a fixed deadline.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Reset(s.ttl)
	}
}

// Reschedule replaces the auto-lock duration and re-arms the timer.
func (s *Session) Reschedule(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if ttl > 0 {
		s.timer = time.AfterFunc(ttl, s.expire)
	}
}

// Destroy zeroizes the key and invalidates the session. Idempotent.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroKey()
	s.token = ""
	s.ttl = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) expire() {
	s.mu.Lock()
	s.zeroKey()
	s.token = ""
	s.timer = nil
	s.ttl = 0
	lockFn := s.lockFn
	s.mu.Unlock()

	if lockFn != nil {
		lockFn()
	}
}

func (s *Session) zeroKey() {
	if s.key != nil {
		crypto.Zeroize(s.key)
		s.key = nil
	}
}
