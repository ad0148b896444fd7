package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/logger"
	"github.com/erp/customer/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Operation outcomes reported to Metrics
const (
	OutcomeOK = "ok"
	// OutcomeError is used for errors without a domain code
	OutcomeError = "error"
)

// Metrics receives per-operation measurements
type Metrics interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
	ObserveCacheLookup(hit bool)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, string, time.Duration) {}
func (NopMetrics) ObserveCacheLookup(bool)                        {}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*customer.Customer, error) { return nil, nil }
func (noopCache) Put(context.Context, string, *customer.Customer) error   { return nil }
func (noopCache) Evict(context.Context, string) error                     { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, customer.Customer) {}

// Outcome maps an error to a low-cardinality label
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := shared.ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return OutcomeError
}

// storageError classifies a failed store call. Domain errors pass through,
// deadline overruns become ErrTimeout and everything else ErrStorageUnavailable.
func storageError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if shared.IsDomainError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return shared.ErrTimeout.WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return shared.ErrStorageUnavailable.WithCause(err)
}

func finishOperation(log *logger.ContextLogger, metrics Metrics, span trace.Span, operation string, start time.Time, err error) {
	outcome := Outcome(err)
	metrics.ObserveOperation(operation, outcome, time.Since(start))
	if err == nil {
		telemetry.EndSpan(span, nil, "")
		return
	}
	telemetry.EndSpan(span, err, outcome)
	switch shared.ErrorCode(err) {
	case shared.CodeTimeout, shared.CodeStorageUnavailable, "":
		log.Error("Customer operation failed",
			zap.String("operation", operation),
			zap.Error(err))
	default:
		log.Debug("Customer operation rejected",
			zap.String("operation", operation),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}
