package api

import (
	"sync"

	"github.com/nchudnovets/merezhyvo-vault/internal/capture"
)

// Notification is one outbound event for the shell to render. Kind is
// "prompt" (a save/update question) or "unlock-required".
type Notification struct {
	Kind   string          `json:"kind"`
	Prompt *capture.Prompt `json:"prompt,omitempty"`
}

// notificationQueue buffers outbound capture notifications until the shell
// polls for them. Polling drains the queue.
type notificationQueue struct {
	mu      sync.Mutex
	pending []Notification
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{}
}

func (q *notificationQueue) PromptSave(p capture.Prompt) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, Notification{Kind: "prompt", Prompt: &p})
}

func (q *notificationQueue) UnlockRequired() {
	q.mu.Lock()
	defer q.mu.Unlock()
	// Collapse repeated unlock-required nudges; one is enough.
	for _, n := range q.pending {
		if n.Kind == "unlock-required" {
			return
		}
	}
	q.pending = append(q.pending, Notification{Kind: "unlock-required"})
}

func (q *notificationQueue) drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
