package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aadithya-v/sessionstate"
)

// ErrDuplicatePublisher is returned when a name is registered twice.
var ErrDuplicatePublisher = errors.New("publisher: already registered")

// Registry is an in-process stand-in for the host's publisher registry.
// It fans every notification out to all registered publishers in name order.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]AuthenticationDataPublisher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		publishers: make(map[string]AuthenticationDataPublisher),
	}
}

// Register adds p under p.Name().
func (r *Registry) Register(p AuthenticationDataPublisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.publishers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePublisher, name)
	}
	r.publishers[name] = p
	return nil
}

// Unregister removes the publisher registered under name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.publishers, name)
}

// Names returns the registered publisher names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) snapshot() []AuthenticationDataPublisher {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AuthenticationDataPublisher, 0, len(names))
	for _, name := range names {
		if p, ok := r.publishers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PublishSessionCreation notifies every publisher.
func (r *Registry) PublishSessionCreation(ctx context.Context, data *sessionstate.SessionData) {
	for _, p := range r.snapshot() {
		p.PublishSessionCreation(ctx, data)
	}
}

// PublishSessionUpdate notifies every publisher.
func (r *Registry) PublishSessionUpdate(ctx context.Context, data *sessionstate.SessionData) {
	for _, p := range r.snapshot() {
		p.PublishSessionUpdate(ctx, data)
	}
}

// PublishSessionTermination notifies every publisher.
func (r *Registry) PublishSessionTermination(ctx context.Context, data *sessionstate.SessionData) {
	for _, p := range r.snapshot() {
		p.PublishSessionTermination(ctx, data)
	}
}

// PublishAuthenticationStepSuccess notifies every publisher.
func (r *Registry) PublishAuthenticationStepSuccess(ctx context.Context, data *AuthenticationData) {
	for _, p := range r.snapshot() {
		p.PublishAuthenticationStepSuccess(ctx, data)
	}
}

// PublishAuthenticationStepFailure notifies every publisher.
func (r *Registry) PublishAuthenticationStepFailure(ctx context.Context, data *AuthenticationData) {
	for _, p := range r.snapshot() {
		p.PublishAuthenticationStepFailure(ctx, data)
	}
}

// PublishAuthenticationSuccess notifies every publisher.
func (r *Registry) PublishAuthenticationSuccess(ctx context.Context, data *AuthenticationData) {
	for _, p := range r.snapshot() {
		p.PublishAuthenticationSuccess(ctx, data)
	}
}

// PublishAuthenticationFailure notifies every publisher.
func (r *Registry) PublishAuthenticationFailure(ctx context.Context, data *AuthenticationData) {
	for _, p := range r.snapshot() {
		p.PublishAuthenticationFailure(ctx, data)
	}
}

var _ SessionPublisher = (*Registry)(nil)
