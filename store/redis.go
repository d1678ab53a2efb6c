package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis.
//
// Each (user, service provider) pair is a single hash, so the layout itself
// cannot hold more than one record per key. An id index maps record ids back
// to their hash. Transactions WATCH every key they read and apply their
// writes with MULTI/EXEC; a concurrent writer makes the commit fail with
// ErrConflict.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig contains configuration options for Redis.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (empty for no auth)
	Password string

	// DB is the Redis database number (0-15)
	DB int

	// KeyPrefix is prepended to all keys (default: "sessionstate:")
	// typically ends with a colon.
	KeyPrefix string
}

// NewRedisStore creates a Redis session record store from a Redis client and a key prefix.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "sessionstate:"
	}
	return &RedisStore{
		client: client,
		prefix: keyPrefix,
	}
}

// NewRedisStoreFromConfig creates a Redis session record store and checks the connection.
func NewRedisStoreFromConfig(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix), nil
}

// WithTx runs fn with reads on a dedicated connection and queues its writes
// for a single MULTI/EXEC.
func (s *RedisStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var commitErr error

	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := &redisTx{store: s, rtx: rtx, watched: make(map[string]struct{})}
		if err := fn(tx); err != nil {
			return err
		}
		if len(tx.ops) == 0 {
			return nil
		}

		_, commitErr = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range tx.ops {
				op(pipe)
			}
			return nil
		})
		return commitErr
	})

	switch {
	case err == nil:
		return nil
	case commitErr == nil:
		return err
	case errors.Is(commitErr, redis.TxFailedErr):
		return persistErr("redis", "commit transaction", ErrConflict)
	default:
		return persistErr("redis", "commit transaction", commitErr)
	}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recordKey(user, serviceProvider string) string {
	return s.prefix + "record:" + url.QueryEscape(user) + ":" + url.QueryEscape(serviceProvider)
}

func (s *RedisStore) idKey(id int64) string {
	return s.prefix + "id:" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) seqKey() string {
	return s.prefix + "seq"
}

type redisTx struct {
	store   *RedisStore
	rtx     *redis.Tx
	ops     []func(pipe redis.Pipeliner)
	watched map[string]struct{}
}

// watch adds keys to the transaction's WATCH set. Keys already watched are
// skipped: a second WATCH must not move the snapshot the commit is checked
// against.
func (t *redisTx) watch(ctx context.Context, keys ...string) error {
	var fresh []string
	for _, key := range keys {
		if _, ok := t.watched[key]; ok {
			continue
		}
		fresh = append(fresh, key)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := t.rtx.Watch(ctx, fresh...).Err(); err != nil {
		return err
	}
	for _, key := range fresh {
		t.watched[key] = struct{}{}
	}
	return nil
}

// FindActive reads the pair's hash. Queued writes of the same transaction
// are not visible.
func (t *redisTx) FindActive(ctx context.Context, user, serviceProvider string) (*SessionRecord, error) {
	key := t.store.recordKey(user, serviceProvider)
	if err := t.watch(ctx, key); err != nil {
		return nil, persistErr("redis", "watch session record", err)
	}

	fields, err := t.rtx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistErr("redis", "find session record", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec, err := decodeRecord(fields)
	if err != nil {
		return nil, persistErr("redis", "find session record", err)
	}
	return rec, nil
}

// ListByKey returns the pair's record, if any. Redis never holds more than one.
func (t *redisTx) ListByKey(ctx context.Context, user, serviceProvider string) ([]*SessionRecord, error) {
	rec, err := t.FindActive(ctx, user, serviceProvider)
	if err != nil || rec == nil {
		return nil, err
	}
	return []*SessionRecord{rec}, nil
}

// Insert allocates an id and queues the hash write. An existing record for
// the same pair is replaced and its id index removed.
func (t *redisTx) Insert(ctx context.Context, rec *SessionRecord) (int64, error) {
	key := t.store.recordKey(rec.User, rec.ServiceProvider)
	if err := t.watch(ctx, key); err != nil {
		return 0, persistErr("redis", "watch session record", err)
	}

	previous, err := t.rtx.HGet(ctx, key, "id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, persistErr("redis", "insert session record", err)
	}

	id, err := t.rtx.Incr(ctx, t.store.seqKey()).Result()
	if err != nil {
		return 0, persistErr("redis", "allocate record id", err)
	}
	rec.ID = id

	fields := encodeRecord(rec)
	idKey := t.store.idKey(id)
	t.ops = append(t.ops, func(pipe redis.Pipeliner) {
		if previous != "" {
			pipe.Del(ctx, t.store.prefix+"id:"+previous)
			pipe.Del(ctx, key)
		}
		pipe.HSet(ctx, key, fields)
		pipe.Set(ctx, idKey, key, 0)
	})
	return id, nil
}

// UpdateAction queues the action and timestamp change for the record with id.
func (t *redisTx) UpdateAction(ctx context.Context, id int64, action Action, ts time.Time) error {
	key, err := t.resolve(ctx, id)
	if err != nil {
		return persistErr("redis", "update session record", err)
	}
	if key == "" {
		return persistErr("redis", "update session record", fmt.Errorf("%w: id=%d", ErrRecordNotFound, id))
	}

	t.ops = append(t.ops, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key,
			"action", action.String(),
			"timestamp", strconv.FormatInt(ts.UnixMilli(), 10),
		)
	})
	return nil
}

// Delete queues removal of the record with id. A missing record is a no-op.
func (t *redisTx) Delete(ctx context.Context, id int64) error {
	key, err := t.resolve(ctx, id)
	if err != nil {
		return persistErr("redis", "delete session record", err)
	}
	if key == "" {
		return nil
	}

	idKey := t.store.idKey(id)
	t.ops = append(t.ops, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key, idKey)
	})
	return nil
}

// resolve maps a record id to its hash key, watching both keys. It returns
// "" when the id is unknown or points at a hash owned by another id.
func (t *redisTx) resolve(ctx context.Context, id int64) (string, error) {
	idKey := t.store.idKey(id)
	if err := t.watch(ctx, idKey); err != nil {
		return "", err
	}

	key, err := t.rtx.Get(ctx, idKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if err := t.watch(ctx, key); err != nil {
		return "", err
	}
	owner, err := t.rtx.HGet(ctx, key, "id").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if owner != strconv.FormatInt(id, 10) {
		return "", nil
	}
	return key, nil
}

func encodeRecord(rec *SessionRecord) map[string]any {
	return map[string]any{
		"id":               strconv.FormatInt(rec.ID, 10),
		"user":             rec.User,
		"session_id":       rec.SessionID,
		"timestamp":        strconv.FormatInt(rec.Timestamp.UnixMilli(), 10),
		"action":           rec.Action.String(),
		"service_provider": rec.ServiceProvider,
	}
}

func decodeRecord(fields map[string]string) (*SessionRecord, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", fields["id"], err)
	}
	millis, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", fields["timestamp"], err)
	}
	action, err := ParseAction(fields["action"])
	if err != nil {
		return nil, err
	}

	return &SessionRecord{
		ID:              id,
		User:            fields["user"],
		SessionID:       fields["session_id"],
		ServiceProvider: fields["service_provider"],
		Action:          action,
		Timestamp:       time.UnixMilli(millis).UTC(),
	}, nil
}
