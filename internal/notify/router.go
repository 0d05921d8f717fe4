// Package notify decides, per submission, whether completion of a job will be
// pushed by the provider or must be pulled by polling.
package notify

import (
	"strings"
	"sync"

	"github.com/timmy/clearcut/internal/domain"
)

// WebhookPath is the route the provider calls back on, relative to the public base address.
const WebhookPath = "/api/webhook"

// Decision is the notification setup for a single submission.
type Decision struct {
	Mode        domain.NotificationMode
	CallbackURL string // empty in pull mode
}

// Decide is the pure routing rule: a configured, reachable base address means push.
func Decide(callbackBase string) Decision {
	base := strings.TrimSuffix(strings.TrimSpace(callbackBase), "/")
	if base == "" {
		return Decision{Mode: domain.ModePull}
	}
	return Decision{Mode: domain.ModePush, CallbackURL: base + WebhookPath}
}

// Router holds the process-wide callback base address. The address may be
// swapped on config reload; a Decision already handed out is never revisited.
type Router struct {
	mu   sync.RWMutex
	base string
}

// NewRouter creates a Router for the given callback base; empty means pull.
func NewRouter(callbackBase string) *Router {
	return &Router{base: callbackBase}
}

// Route returns the decision for a new submission.
func (r *Router) Route() Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Decide(r.base)
}

// SetCallbackBase replaces the base address used for future submissions.
func (r *Router) SetCallbackBase(base string) {
	r.mu.Lock()
	r.base = base
	r.mu.Unlock()
}
