package sessionstate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/aadithya-v/sessionstate/lock"
	"github.com/aadithya-v/sessionstate/store"
)

// Reconciler keeps at most one session record per (user, service provider)
// pair in sync with the lifecycle events it is given.
type Reconciler struct {
	config    Config
	store     store.Store
	ownsStore bool
	locker    lock.Locker
	logger    *zap.Logger
	metrics   *Metrics
}

// New creates a new Reconciler with the given configuration.
// If Store is not provided, a SQLite store is opened at DatabasePath and
// closed by Close.
func New(cfg Config) (*Reconciler, error) {
	cfg.applyDefaults()

	r := &Reconciler{
		config:  cfg,
		locker:  cfg.Locker,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	if cfg.Store != nil {
		r.store = cfg.Store
	} else {
		sqliteStore, err := store.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("sessionstate: failed to initialize SQLite store: %w", err)
		}
		r.store = sqliteStore
		r.ownsStore = true
	}

	return r, nil
}

// Close releases the store if the Reconciler opened it.
func (r *Reconciler) Close() error {
	if r.ownsStore {
		return r.store.Close()
	}
	return nil
}

// Reconcile applies one lifecycle event to the store.
//
// The existing record for the event's (user, service provider) pair is read
// and at most one mutation is applied, all in one transaction:
//
//	no record,  created or updated -> insert
//	no record,  terminated         -> nothing
//	record,     updated            -> update action and timestamp
//	record,     terminated         -> delete
//	record,     created            -> nothing
//
// An event without session data is a no-op. Any store error rolls the
// transaction back and is returned; nothing is retried.
func (r *Reconciler) Reconcile(ctx context.Context, ev LifecycleEvent) (Outcome, error) {
	if ev.Session == nil {
		return OutcomeNoop, nil
	}

	action, err := ev.Kind.Action()
	if err != nil {
		return OutcomeNoop, err
	}

	started := time.Now()
	outcome, err := r.reconcile(ctx, action, ev.Session)
	r.metrics.observe(action.String(), outcome, err, started)
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, action store.Action, data *SessionData) (Outcome, error) {
	key := lockKey(data.User, data.ServiceProvider)
	unlock, err := r.locker.Lock(ctx, key)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release session key lock", zap.String("key", key), zap.Error(err))
		}
	}()

	var outcome Outcome
	err = r.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		outcome, err = r.apply(ctx, tx, action, data)
		return err
	})
	if err != nil {
		return OutcomeNoop, err
	}
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, tx store.Tx, action store.Action, data *SessionData) (Outcome, error) {
	existing, err := r.findActive(ctx, tx, data)
	if err != nil {
		return OutcomeNoop, err
	}

	switch {
	case existing == nil && action == store.ActionTerminated:
		return OutcomeNoop, nil

	case existing == nil:
		// A missing record is an implicit creation, whatever the action.
		r.logPersist(action, data)
		rec := &store.SessionRecord{
			User:            data.User,
			SessionID:       data.SessionID,
			ServiceProvider: data.ServiceProvider,
			Action:          action,
			Timestamp:       data.CreatedAt(),
		}
		if _, err := tx.Insert(ctx, rec); err != nil {
			return OutcomeNoop, err
		}
		return OutcomeInserted, nil

	case action == store.ActionUpdated:
		r.logPersist(action, data)
		if err := tx.UpdateAction(ctx, existing.ID, store.ActionUpdated, data.UpdatedAt()); err != nil {
			return OutcomeNoop, err
		}
		return OutcomeUpdated, nil

	case action == store.ActionTerminated:
		r.logPersist(action, data)
		if err := tx.Delete(ctx, existing.ID); err != nil {
			return OutcomeNoop, err
		}
		return OutcomeDeleted, nil

	default:
		// TODO: decide with product owners whether a repeated creation
		// should refresh the record instead of being dropped.
		r.logger.Debug("dropping creation for key with an existing record",
			zap.String("user", data.User),
			zap.String("session_id", data.SessionID),
			zap.Int64("record_id", existing.ID),
		)
		return OutcomeNoop, nil
	}
}

// findActive reads the current record and applies the duplicate policy.
func (r *Reconciler) findActive(ctx context.Context, tx store.Tx, data *SessionData) (*store.SessionRecord, error) {
	existing, err := tx.FindActive(ctx, data.User, data.ServiceProvider)
	if err == nil || !errors.Is(err, store.ErrDuplicateRecords) {
		return existing, err
	}

	switch r.config.DuplicatePolicy {
	case DuplicatesIgnore:
		r.logger.Warn("acting on newest of duplicate session records",
			zap.String("user", data.User),
			zap.String("service_provider", data.ServiceProvider),
			zap.Int64("record_id", existing.ID),
		)
		return existing, nil
	case DuplicatesRepair:
		return r.repair(ctx, tx, data)
	default:
		return nil, &InconsistentStateError{
			User:            data.User,
			ServiceProvider: data.ServiceProvider,
			Err:             err,
		}
	}
}

// repair deletes every record for the key except the newest one.
func (r *Reconciler) repair(ctx context.Context, tx store.Tx, data *SessionData) (*store.SessionRecord, error) {
	records, err := tx.ListByKey(ctx, data.User, data.ServiceProvider)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	for _, extra := range records[1:] {
		r.logger.Warn("deleting duplicate session record",
			zap.String("user", data.User),
			zap.String("service_provider", data.ServiceProvider),
			zap.Int64("record_id", extra.ID),
			zap.Int64("kept_id", records[0].ID),
		)
		if err := tx.Delete(ctx, extra.ID); err != nil {
			return nil, err
		}
	}
	return records[0], nil
}

func (r *Reconciler) logPersist(action store.Action, data *SessionData) {
	r.logger.Info("persisting session data record",
		zap.String("action", action.String()),
		zap.String("user", data.User),
		zap.String("session_id", data.SessionID),
	)
}

func lockKey(user, serviceProvider string) string {
	return url.PathEscape(user) + "/" + url.PathEscape(serviceProvider)
}
