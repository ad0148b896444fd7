package customer

import (
	"context"
	"errors"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/logger"
	"github.com/erp/customer/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ValuesService answers lightweight lookups that do not need whole customers:
// counts, autocomplete candidates and the current version of a customer.
type ValuesService struct {
	repo    customer.Repository
	metrics Metrics
	logger  *zap.Logger
	config  Config
}

// NewValuesService creates a new ValuesService
func NewValuesService(repo customer.Repository, logger *zap.Logger, metrics Metrics, cfg Config) *ValuesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ValuesService{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		config:  cfg.withDefaults(),
	}
}

// Count returns the number of customers
func (s *ValuesService) Count(ctx context.Context) (_ int64, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "count")
	defer s.finish(ctx, span, "count", time.Now(), &err)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	n, err := s.repo.Count(callCtx)
	if err != nil {
		return 0, storageError(callCtx, err)
	}
	return n, nil
}

// FindLastNamesByPrefix returns the distinct last names starting with prefix
func (s *ValuesService) FindLastNamesByPrefix(ctx context.Context, prefix string) (_ []string, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "last_names_by_prefix")
	defer s.finish(ctx, span, "last_names_by_prefix", time.Now(), &err)

	callCtx, cancel := context.WithTimeout(ctx, s.config.LongTimeout)
	defer cancel()
	names, err := s.repo.FindLastNamesByPrefix(callCtx, prefix)
	if err != nil {
		return nil, storageError(callCtx, err)
	}
	return names, nil
}

// FindEmailsByPrefix returns the emails starting with prefix
func (s *ValuesService) FindEmailsByPrefix(ctx context.Context, prefix string) (_ []string, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "emails_by_prefix")
	defer s.finish(ctx, span, "emails_by_prefix", time.Now(), &err)

	callCtx, cancel := context.WithTimeout(ctx, s.config.LongTimeout)
	defer cancel()
	emails, err := s.repo.FindEmailsByPrefix(callCtx, customer.NormalizeEmail(prefix))
	if err != nil {
		return nil, storageError(callCtx, err)
	}
	return emails, nil
}

// FindVersionByID returns the current version of a customer.
// found is false when the customer does not exist.
func (s *ValuesService) FindVersionByID(ctx context.Context, id string) (version int, found bool, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "version_by_id",
		telemetry.CustomerID(id))
	defer s.finish(ctx, span, "version_by_id", time.Now(), &err)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	c, err := s.repo.FindByID(callCtx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageError(callCtx, err)
	}
	return c.Version, true, nil
}

func (s *ValuesService) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err *error) {
	finishOperation(logger.WithLogger(ctx, s.logger), s.metrics, span, operation, start, *err)
}
