package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aadithya-v/sessionstate"
	"github.com/aadithya-v/sessionstate/internal/config"
	"github.com/aadithya-v/sessionstate/lock"
	"github.com/aadithya-v/sessionstate/publisher"
	"github.com/aadithya-v/sessionstate/store"
)

// app holds everything a subcommand needs, built from one Config.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *prometheus.Registry
	reconciler *sessionstate.Reconciler
	registry   *publisher.Registry
	component  *publisher.Component

	closers []func() error
}

// staticRealm is the realm bound when running outside a host container.
type staticRealm string

func (r staticRealm) Name() string { return string(r) }

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  prometheus.NewRegistry(),
		registry: publisher.NewRegistry(),
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	locker, closeLocker, err := openLocker(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeLocker != nil {
		a.closers = append(a.closers, closeLocker)
	}

	metrics, err := sessionstate.NewMetrics(a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := sessionstate.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.reconciler, err = sessionstate.New(sessionstate.Config{
		Store:           st,
		Locker:          locker,
		Logger:          logger.Named("reconciler"),
		Metrics:         metrics,
		DuplicatePolicy: policy,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	pub := publisher.New(a.reconciler,
		publisher.WithName(cfg.Publisher.Name),
		publisher.WithLogger(logger.Named("publisher")),
	)
	a.component = publisher.NewComponent(pub, logger.Named("component"))
	a.component.SetRealmService(staticRealm(cfg.Publisher.Realm))

	logger.Info("sessionstate initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("lock", cfg.Lock.Driver),
		zap.String("duplicate_policy", policy.String()),
	)
	return a, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.SQLitePath)
	case "mysql":
		return store.NewMySQLFromDSN(cfg.MySQLDSN)
	case "redis":
		return store.NewRedisStoreFromConfig(store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func openLocker(cfg *config.Config) (lock.Locker, func() error, error) {
	if cfg.Lock.Driver != "redis" {
		return lock.NewLocal(), nil, nil
	}

	rc := cfg.LockRedis()
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	return lock.NewRedis(client, rc.KeyPrefix, lock.WithTTL(cfg.Lock.TTL)), client.Close, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
