// Package publisher adapts the session reconciler to the data publisher
// interface of the hosting authentication framework.
//
// The framework notifies publishers about authentication steps as well as
// session lifecycle changes. Only the session hooks carry meaning here; the
// authentication hooks are satisfied by NopAuthenticationHooks.
package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/aadithya-v/sessionstate"
)

// DefaultName is the name the publisher registers under.
const DefaultName = "CustomSessionDataPublisher"

// AuthenticationData describes one authentication attempt or step.
type AuthenticationData struct {
	ContextID       string
	Username        string
	TenantDomain    string
	ServiceProvider string
	InboundProtocol string
	Step            int
	Success         bool
	Params          map[string]any
}

// SessionPublisher is the capability this package cares about.
type SessionPublisher interface {
	PublishSessionCreation(ctx context.Context, data *sessionstate.SessionData)
	PublishSessionUpdate(ctx context.Context, data *sessionstate.SessionData)
	PublishSessionTermination(ctx context.Context, data *sessionstate.SessionData)
}

// AuthenticationDataPublisher is the full interface the framework calls.
type AuthenticationDataPublisher interface {
	SessionPublisher

	PublishAuthenticationStepSuccess(ctx context.Context, data *AuthenticationData)
	PublishAuthenticationStepFailure(ctx context.Context, data *AuthenticationData)
	PublishAuthenticationSuccess(ctx context.Context, data *AuthenticationData)
	PublishAuthenticationFailure(ctx context.Context, data *AuthenticationData)

	Name() string
}

// NopAuthenticationHooks implements the authentication hooks as no-ops.
type NopAuthenticationHooks struct{}

func (NopAuthenticationHooks) PublishAuthenticationStepSuccess(context.Context, *AuthenticationData) {
}

func (NopAuthenticationHooks) PublishAuthenticationStepFailure(context.Context, *AuthenticationData) {
}

func (NopAuthenticationHooks) PublishAuthenticationSuccess(context.Context, *AuthenticationData) {
}

func (NopAuthenticationHooks) PublishAuthenticationFailure(context.Context, *AuthenticationData) {
}

// Reconciler applies lifecycle events. *sessionstate.Reconciler implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, ev sessionstate.LifecycleEvent) (sessionstate.Outcome, error)
}

// Publisher forwards session lifecycle hooks to a Reconciler.
//
// Publishing is best effort: a failed reconciliation is logged and never
// reaches the authentication flow that triggered it.
type Publisher struct {
	NopAuthenticationHooks

	name       string
	reconciler Reconciler
	logger     *zap.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithName overrides DefaultName.
func WithName(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets the logger. Default: no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Publisher backed by r.
func New(r Reconciler, opts ...Option) *Publisher {
	p := &Publisher{
		name:       DefaultName,
		reconciler: r,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the name the publisher is registered under.
func (p *Publisher) Name() string {
	return p.name
}

// PublishSessionCreation records a newly created session.
func (p *Publisher) PublishSessionCreation(ctx context.Context, data *sessionstate.SessionData) {
	p.publish(ctx, sessionstate.SessionCreated, data)
}

// PublishSessionUpdate records a session update.
func (p *Publisher) PublishSessionUpdate(ctx context.Context, data *sessionstate.SessionData) {
	p.publish(ctx, sessionstate.SessionUpdated, data)
}

// PublishSessionTermination records a terminated session.
func (p *Publisher) PublishSessionTermination(ctx context.Context, data *sessionstate.SessionData) {
	p.publish(ctx, sessionstate.SessionTerminated, data)
}

func (p *Publisher) publish(ctx context.Context, kind sessionstate.EventKind, data *sessionstate.SessionData) {
	p.logger.Debug("publishing session " + kind.String())

	ev := sessionstate.LifecycleEvent{Kind: kind, Session: data}
	if _, err := p.reconciler.Reconcile(ctx, ev); err != nil {
		fields := []zap.Field{zap.String("event", kind.String()), zap.Error(err)}
		if data != nil {
			fields = append(fields,
				zap.String("user", data.User),
				zap.String("session_id", data.SessionID),
				zap.String("service_provider", data.ServiceProvider),
			)
		}
		p.logger.Error("error while persisting session data record", fields...)
	}
}

var _ AuthenticationDataPublisher = (*Publisher)(nil)
