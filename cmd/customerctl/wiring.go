package main

import (
	"context"
	"errors"
	"fmt"

	customerapp "github.com/erp/customer/internal/application/customer"
	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/infrastructure/auth"
	"github.com/erp/customer/internal/infrastructure/cache"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/erp/customer/internal/infrastructure/document"
	"github.com/erp/customer/internal/infrastructure/messaging/kafka"
	"github.com/erp/customer/internal/infrastructure/metrics"
	"github.com/erp/customer/internal/infrastructure/persistence"
	"github.com/erp/customer/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app holds the wired services and everything that must be released
type app struct {
	service  *customerapp.CustomerService
	values   *customerapp.ValuesService
	accounts *auth.AccountService
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

type wiringOptions struct {
	bcryptCost int
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close waits for pending notifications, then releases resources in reverse order
func (a *app) Close(ctx context.Context) error {
	if a.service != nil {
		a.service.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger, opts wiringOptions) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		StoreDriver:       cfg.Database.Driver,
		Insecure:          cfg.Telemetry.Insecure,
	}, log, telemetry.WithSyncExport())
	if err != nil {
		return nil, err
	}
	a.onClose(tp.Shutdown)

	repo, accountDB, err := openStores(ctx, a, cfg, log)
	if err != nil {
		return nil, err
	}

	accountOpts := []auth.Option{auth.WithLogger(log)}
	if opts.bcryptCost > 0 {
		accountOpts = append(accountOpts, auth.WithBcryptCost(opts.bcryptCost))
	}
	a.accounts = auth.NewAccountService(persistence.NewGormAccountRepository(accountDB.DB), accountOpts...)

	built, err := cache.NewCustomerCache(ctx, cfg.Cache, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return built.Close() })

	m := metrics.NewCustomerMetricsWithRegisterer(a.registry)
	notifier, err := buildNotifier(a, cfg, m, log)
	if err != nil {
		return nil, err
	}

	svcCfg := customerapp.Config{
		ShortTimeout:  cfg.Service.ShortTimeout,
		LongTimeout:   cfg.Service.LongTimeout,
		NotifyTimeout: cfg.Service.NotifyTimeout,
	}
	a.service = customerapp.NewCustomerService(repo, a.accounts,
		customerapp.WithCache(built.Cache),
		customerapp.WithNotifier(notifier),
		customerapp.WithMetrics(m),
		customerapp.WithLogger(log),
		customerapp.WithConfig(svcCfg))
	a.values = customerapp.NewValuesService(repo, log, m, svcCfg)
	return a, nil
}

// openStores returns the customer repository and the relational database
// holding accounts. With the mongo driver, accounts live in sqlite at
// database.path.
func openStores(ctx context.Context, a *app, cfg *config.Config, log *zap.Logger) (customer.Repository, *persistence.Database, error) {
	tracing := telemetry.DefaultDBTracingConfig()
	tracing.Enabled = cfg.Telemetry.DBTraceEnabled
	tracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}

	dbCfg := cfg.Database
	if dbCfg.Driver == config.DriverMongo {
		dbCfg.Driver = config.DriverSQLite
	}
	db, err := persistence.NewDatabase(&dbCfg, persistence.WithLogger(log), persistence.WithTracing(tracing))
	if err != nil {
		return nil, nil, err
	}
	a.onClose(func(context.Context) error { return db.Close() })
	if dbCfg.Driver == config.DriverSQLite {
		// postgres schemas come from cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	if cfg.Database.Driver != config.DriverMongo {
		return persistence.NewGormCustomerRepository(db.DB), db, nil
	}

	store, err := document.Connect(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(store.Close)
	repo := document.NewCustomerRepository(store.Collection())
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, nil, err
	}
	return repo, db, nil
}

func buildNotifier(a *app, cfg *config.Config, m *metrics.CustomerMetrics, log *zap.Logger) (customer.Notifier, error) {
	if !cfg.Kafka.Enabled {
		return kafka.NewLogNotifier(log, cfg.Mail.From, cfg.Mail.Sales), nil
	}
	producer, err := kafka.Dial(cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return producer.Close() })
	return kafka.NewMailNotifier(producer, kafka.NewLoggingFallback(log), cfg.Mail,
		kafka.WithObserver(m),
		kafka.WithNotifierLogger(log)), nil
}
