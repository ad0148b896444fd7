package customer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/logger"
	"github.com/erp/customer/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const spanService = "customer"

// CustomerService handles the customer lifecycle: lookups, queries,
// creation with a linked account, optimistic updates, patches and deletes.
type CustomerService struct {
	repo     customer.Repository
	accounts customer.AccountService
	cache    customer.Cache
	notifier customer.Notifier
	metrics  Metrics
	logger   *zap.Logger
	config   Config

	notifications sync.WaitGroup
}

// Option configures a CustomerService
type Option func(*CustomerService)

// WithCache sets the per-id result cache
func WithCache(c customer.Cache) Option {
	return func(s *CustomerService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithNotifier sets the notifier informed about new customers
func WithNotifier(n customer.Notifier) Option {
	return func(s *CustomerService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMetrics sets the operation metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *CustomerService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *CustomerService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig sets the timeouts
func WithConfig(cfg Config) Option {
	return func(s *CustomerService) {
		s.config = cfg.withDefaults()
	}
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(repo customer.Repository, accounts customer.AccountService, opts ...Option) *CustomerService {
	s := &CustomerService{
		repo:     repo,
		accounts: accounts,
		cache:    noopCache{},
		notifier: noopNotifier{},
		metrics:  NopMetrics{},
		logger:   zap.NewNop(),
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindByID returns the customer with the given id, or nil when none exists.
// Store hits are cached; the cache is consulted first.
func (s *CustomerService) FindByID(ctx context.Context, id string) (_ *customer.Customer, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "find_by_id",
		telemetry.CustomerID(id))
	ctx = logger.WithCustomerID(ctx, id)
	defer s.finish(ctx, span, "find_by_id", time.Now(), &err)

	if cached := s.cacheGet(ctx, id); cached != nil {
		return cached, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	found, err := s.repo.FindByID(callCtx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(callCtx, err)
	}

	s.cachePut(ctx, id, found)
	return found, nil
}

// FindAll returns every customer
func (s *CustomerService) FindAll(ctx context.Context) (_ []customer.Customer, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "find_all")
	defer s.finish(ctx, span, "find_all", time.Now(), &err)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	all, err := s.repo.FindAll(callCtx)
	if err != nil {
		return nil, storageError(callCtx, err)
	}
	return all, nil
}

// Find returns the customers matching the query parameters. No parameters
// means all customers. Any invalid parameter yields an empty result.
func (s *CustomerService) Find(ctx context.Context, params map[string][]string) (_ []customer.Customer, err error) {
	if len(params) == 0 {
		return s.FindAll(ctx)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "find")
	defer s.finish(ctx, span, "find", time.Now(), &err)

	criteria, err := customer.BuildCriteria(params)
	if err != nil {
		s.log(ctx).Debug("Rejecting query with invalid criteria", zap.Error(err))
		return []customer.Customer{}, nil
	}
	telemetry.Annotate(ctx, telemetry.CriteriaCount(len(criteria)))

	callCtx, cancel := context.WithTimeout(ctx, s.config.LongTimeout)
	defer cancel()
	matches, err := s.repo.FindMatching(callCtx, criteria)
	if err != nil {
		return nil, storageError(callCtx, err)
	}
	telemetry.Annotate(ctx, telemetry.ResultCount(len(matches)))
	return matches, nil
}

// Stream calls fn for every stored customer. Errors returned by fn stop the
// iteration and are returned unchanged.
func (s *CustomerService) Stream(ctx context.Context, fn func(customer.Customer) error) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "stream")
	defer s.finish(ctx, span, "stream", time.Now(), &err)

	var fnErr error
	err = s.repo.Stream(ctx, func(c customer.Customer) error {
		if e := fn(c); e != nil {
			fnErr = e
			return e
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return storageError(ctx, err)
	}
	return nil
}

// Create persists a new customer together with its user account and
// announces it asynchronously. Nothing is stored when a check fails.
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (_ *customer.Customer, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create")
	defer s.finish(ctx, span, "create", time.Now(), &err)

	if req.Account == nil || strings.TrimSpace(req.Account.Username) == "" || req.Account.Password == "" {
		return nil, shared.ErrInvalidAccount
	}

	candidate := req.Customer.Clone()
	candidate.BaseAggregateRoot = shared.BaseAggregateRoot{}
	candidate.Username = ""
	if err := customer.Validate(candidate); err != nil {
		return nil, err
	}

	email := customer.NormalizeEmail(candidate.Email)
	taken, err := s.existsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.NewEmailExistsError(email)
	}

	username := customer.NormalizeUsername(req.Account.Username)
	taken, err = s.existsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.NewUsernameExistsError(username)
	}

	account, err := s.createAccount(ctx, username, req.Account.Password)
	if err != nil {
		return nil, err
	}

	candidate.BaseAggregateRoot = shared.BaseAggregateRoot{BaseEntity: shared.BaseEntity{ID: uuid.NewString()}}
	candidate.Email = email
	candidate.Username = account.Username

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	if err := s.repo.Save(callCtx, &candidate); err != nil {
		s.discardAccount(ctx, account)
		if shared.IsDomainError(err) {
			return nil, err
		}
		return nil, storageError(callCtx, err)
	}

	ctx = logger.WithCustomerID(ctx, candidate.ID)
	s.log(ctx).Info("Customer created",
		zap.String("email", candidate.Email),
		zap.String("username", candidate.Username))

	s.notify(ctx, candidate.Clone())
	return &candidate, nil
}

// Update overwrites the non-identity fields of the customer id with those of
// candidate. versionToken must not be older than the stored version.
// Returns nil when id does not exist.
func (s *CustomerService) Update(ctx context.Context, candidate customer.Customer, id, versionToken string) (_ *customer.Customer, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "update",
		telemetry.CustomerID(id))
	ctx = logger.WithCustomerID(ctx, id)
	defer s.finish(ctx, span, "update", time.Now(), &err)

	s.cacheEvict(ctx, id)

	stored, err := s.findStored(ctx, id)
	if err != nil || stored == nil {
		return nil, err
	}

	version, ok := ParseVersion(versionToken)
	if !ok || !stored.AcceptsVersion(version) {
		s.log(ctx).Debug("Rejecting outdated version",
			zap.String("version_token", versionToken),
			zap.Int("stored_version", stored.Version))
		return nil, shared.NewInvalidVersionError(versionToken)
	}

	check := candidate.Clone()
	check.BaseAggregateRoot = stored.BaseAggregateRoot
	if err := customer.Validate(check); err != nil {
		return nil, err
	}

	email := customer.NormalizeEmail(candidate.Email)
	if email != customer.NormalizeEmail(stored.Email) {
		taken, err := s.existsByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, shared.NewEmailExistsError(email)
		}
	}

	updated := stored.Clone()
	updated.ApplyChanges(candidate)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	if err := s.repo.SaveWithLock(callCtx, &updated); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, shared.NewInvalidVersionError(versionToken).WithCause(err)
		}
		if shared.IsDomainError(err) {
			return nil, err
		}
		return nil, storageError(callCtx, err)
	}
	// a concurrent FindByID may have cached the old snapshot since the first evict
	s.cacheEvict(ctx, id)

	s.log(ctx).Info("Customer updated", zap.Int("version", updated.Version))
	return &updated, nil
}

// Patch applies ops to the stored customer and persists the result through
// Update. Returns nil when id does not exist.
func (s *CustomerService) Patch(ctx context.Context, id, versionToken string, ops []customer.PatchOperation) (_ *customer.Customer, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "patch",
		telemetry.CustomerID(id),
		telemetry.PatchOperations(len(ops)))
	ctx = logger.WithCustomerID(ctx, id)
	defer s.finish(ctx, span, "patch", time.Now(), &err)

	stored, err := s.findStored(ctx, id)
	if err != nil || stored == nil {
		return nil, err
	}

	patched, err := customer.ApplyPatch(*stored, ops)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, patched, id, versionToken)
}

// DeleteByID removes the customer and reports whether it existed
func (s *CustomerService) DeleteByID(ctx context.Context, id string) (_ bool, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "delete_by_id",
		telemetry.CustomerID(id))
	ctx = logger.WithCustomerID(ctx, id)
	defer s.finish(ctx, span, "delete_by_id", time.Now(), &err)

	s.cacheEvict(ctx, id)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	err = s.repo.DeleteByID(callCtx, id)
	s.cacheEvict(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError(callCtx, err)
	}
	s.log(ctx).Info("Customer deleted")
	return true, nil
}

// DeleteByEmail removes the customer owning email. A missing customer is not an error.
func (s *CustomerService) DeleteByEmail(ctx context.Context, email string) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "delete_by_email")
	defer s.finish(ctx, span, "delete_by_email", time.Now(), &err)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	email = customer.NormalizeEmail(email)
	if err := s.repo.DeleteByEmail(callCtx, email); err != nil {
		return storageError(callCtx, err)
	}
	s.log(ctx).Info("Customer deleted by email", zap.String("email", email))
	return nil
}

// Wait blocks until pending notifications have been handed to the notifier
func (s *CustomerService) Wait() {
	s.notifications.Wait()
}

// findStored reads a customer from the store, bypassing the cache
func (s *CustomerService) findStored(ctx context.Context, id string) (*customer.Customer, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	found, err := s.repo.FindByID(callCtx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(callCtx, err)
	}
	return found, nil
}

func (s *CustomerService) existsByEmail(ctx context.Context, email string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	exists, err := s.repo.ExistsByEmail(callCtx, email)
	if err != nil {
		return false, storageError(callCtx, err)
	}
	return exists, nil
}

func (s *CustomerService) existsByUsername(ctx context.Context, username string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	exists, err := s.repo.ExistsByUsername(callCtx, username)
	if err != nil {
		return false, storageError(callCtx, err)
	}
	return exists, nil
}

func (s *CustomerService) createAccount(ctx context.Context, username, password string) (*customer.Account, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ShortTimeout)
	defer cancel()
	account, err := s.accounts.CreateAccount(callCtx, username, password, customer.RoleCustomer)
	if err != nil {
		if shared.IsDomainError(err) {
			return nil, err
		}
		return nil, storageError(callCtx, err)
	}
	if account == nil || account.Username == "" {
		return nil, shared.ErrInvalidAccount
	}
	return account, nil
}

// discardAccount removes an account whose customer could not be stored so the
// username stays available. It runs even when ctx is already cancelled.
func (s *CustomerService) discardAccount(ctx context.Context, account *customer.Account) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShortTimeout)
	defer cancel()
	if err := s.accounts.DeleteAccount(callCtx, account.ID); err != nil {
		s.log(ctx).Error("Orphaned account could not be removed",
			zap.String("account_id", account.ID),
			zap.String("username", account.Username),
			zap.Error(err))
	}
}

// notify hands the customer to the notifier on its own goroutine with a
// context that survives the caller's cancellation.
func (s *CustomerService) notify(ctx context.Context, c customer.Customer) {
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log(ctx).Error("Notifier panicked", zap.Any("panic", r))
			}
		}()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NotifyTimeout)
		defer cancel()
		s.notifier.Notify(notifyCtx, c)
	}()
}

func (s *CustomerService) cacheGet(ctx context.Context, id string) *customer.Customer {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log(ctx).Warn("Customer cache lookup failed", zap.Error(err))
		s.metrics.ObserveCacheLookup(false)
		return nil
	}
	s.metrics.ObserveCacheLookup(cached != nil)
	telemetry.Annotate(ctx, telemetry.CacheHit(cached != nil))
	return cached
}

func (s *CustomerService) cachePut(ctx context.Context, id string, c *customer.Customer) {
	if err := s.cache.Put(ctx, id, c); err != nil {
		s.log(ctx).Warn("Customer cache store failed", zap.Error(err))
	}
}

func (s *CustomerService) cacheEvict(ctx context.Context, id string) {
	if err := s.cache.Evict(ctx, id); err != nil {
		s.log(ctx).Warn("Customer cache eviction failed", zap.Error(err))
	}
}

func (s *CustomerService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

func (s *CustomerService) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err *error) {
	finishOperation(s.log(ctx), s.metrics, span, operation, start, *err)
}
