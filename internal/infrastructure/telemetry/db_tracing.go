package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables in db.statement
	SlowQueryThresh time.Duration
	DBSystem        string
	// TracerProvider overrides the global provider for statement spans
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns tracing disabled, with variables hidden.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin installs otelgorm and annotates statement spans with rows,
// table, error status and slow query markers.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type queryStartKey struct{}

// timedOperation registers a callback pair around one of gorm's builtin processors
type timedOperation func(db *gorm.DB, before, after func(*gorm.DB)) error

var timedOperations = map[string]timedOperation{
	"create": func(db *gorm.DB, before, after func(*gorm.DB)) error {
		if err := db.Callback().Create().Before("gorm:create").Register("customer_timing:before_create", before); err != nil {
			return err
		}
		return db.Callback().Create().After("gorm:create").Register("customer_timing:after_create", after)
	},
	"query": func(db *gorm.DB, before, after func(*gorm.DB)) error {
		if err := db.Callback().Query().Before("gorm:query").Register("customer_timing:before_query", before); err != nil {
			return err
		}
		return db.Callback().Query().After("gorm:query").Register("customer_timing:after_query", after)
	},
	"update": func(db *gorm.DB, before, after func(*gorm.DB)) error {
		if err := db.Callback().Update().Before("gorm:update").Register("customer_timing:before_update", before); err != nil {
			return err
		}
		return db.Callback().Update().After("gorm:update").Register("customer_timing:after_update", after)
	},
	"delete": func(db *gorm.DB, before, after func(*gorm.DB)) error {
		if err := db.Callback().Delete().Before("gorm:delete").Register("customer_timing:before_delete", before); err != nil {
			return err
		}
		return db.Callback().Delete().After("gorm:delete").Register("customer_timing:after_delete", after)
	},
	"row": func(db *gorm.DB, before, after func(*gorm.DB)) error {
		if err := db.Callback().Row().Before("gorm:row").Register("customer_timing:before_row", before); err != nil {
			return err
		}
		return db.Callback().Row().After("gorm:row").Register("customer_timing:after_row", after)
	},
	"raw": func(db *gorm.DB, before, after func(*gorm.DB)) error {
		if err := db.Callback().Raw().Before("gorm:raw").Register("customer_timing:before_raw", before); err != nil {
			return err
		}
		return db.Callback().Raw().After("gorm:raw").Register("customer_timing:after_raw", after)
	},
}

// Register installs otelgorm and the timing callbacks on db. It is a no-op
// when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	for name, register := range timedOperations {
		if err := register(db, markQueryStart, p.annotate); err != nil {
			return fmt.Errorf("register %s tracing callbacks: %w", name, err)
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok || p.config.SlowQueryThresh <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
