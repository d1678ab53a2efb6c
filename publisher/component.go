package publisher

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrRealmServiceUnbound is returned by Activate before a realm service is bound.
var ErrRealmServiceUnbound = errors.New("publisher: realm service not bound")

// RealmService is the host's user realm. The component requires exactly
// one to be bound before it activates.
type RealmService interface {
	Name() string
}

type realmRef struct {
	svc RealmService
}

// Component registers a Publisher with the host while a realm service is bound.
//
// The realm service is set once at startup and cleared at shutdown; reads
// and writes go through an atomic pointer so the host may call Set/Unset
// from its own goroutine.
type Component struct {
	publisher AuthenticationDataPublisher
	logger    *zap.Logger
	realm     atomic.Pointer[realmRef]
	active    atomic.Bool
}

// NewComponent creates a component managing p.
func NewComponent(p AuthenticationDataPublisher, logger *zap.Logger) *Component {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Component{
		publisher: p,
		logger:    logger,
	}
}

// SetRealmService binds the realm service.
func (c *Component) SetRealmService(svc RealmService) {
	c.logger.Debug("setting the realm service")
	c.realm.Store(&realmRef{svc: svc})
}

// UnsetRealmService clears the binding.
func (c *Component) UnsetRealmService(RealmService) {
	c.logger.Debug("unsetting the realm service")
	c.realm.Store(nil)
}

// RealmService returns the bound realm service or nil.
func (c *Component) RealmService() RealmService {
	ref := c.realm.Load()
	if ref == nil {
		return nil
	}
	return ref.svc
}

// Activate registers the publisher with reg.
func (c *Component) Activate(reg *Registry) error {
	realm := c.RealmService()
	if realm == nil {
		c.logger.Error("session data publisher activation failed", zap.Error(ErrRealmServiceUnbound))
		return ErrRealmServiceUnbound
	}

	if err := reg.Register(c.publisher); err != nil {
		c.logger.Error("session data publisher activation failed", zap.Error(err))
		return fmt.Errorf("publisher: activate: %w", err)
	}

	c.active.Store(true)
	c.logger.Info("session data publisher activated",
		zap.String("publisher", c.publisher.Name()),
		zap.String("realm", realm.Name()),
	)
	return nil
}

// Deactivate unregisters the publisher. It is a no-op if not active.
func (c *Component) Deactivate(reg *Registry) {
	if !c.active.CompareAndSwap(true, false) {
		return
	}
	reg.Unregister(c.publisher.Name())
	c.logger.Debug("session data publisher deactivated", zap.String("publisher", c.publisher.Name()))
}

// Active reports whether the publisher is currently registered.
func (c *Component) Active() bool {
	return c.active.Load()
}
