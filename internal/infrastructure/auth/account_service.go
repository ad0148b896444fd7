// Package auth creates and verifies the user accounts linked to customers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/logger"
	"github.com/erp/customer/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the hashing cost for stored passwords
const DefaultBcryptCost = 12

// AccountStore persists accounts. Usernames are passed normalized.
type AccountStore interface {
	Create(ctx context.Context, account *models.AccountModel) error
	FindByUsername(ctx context.Context, username string) (*models.AccountModel, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// AccountService implements customer.AccountService with bcrypt password hashes
type AccountService struct {
	store  AccountStore
	cost   int
	logger *zap.Logger
}

// Option configures an AccountService
type Option func(*AccountService)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *AccountService) {
		s.cost = cost
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *AccountService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewAccountService creates an AccountService over store
func NewAccountService(store AccountStore, opts ...Option) *AccountService {
	s := &AccountService{store: store, cost: DefaultBcryptCost, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ customer.AccountService = (*AccountService)(nil)

// CreateAccount creates an account granted role. The username is lowercased
// and must be unused.
func (s *AccountService) CreateAccount(ctx context.Context, username, password, role string) (*customer.Account, error) {
	username = customer.NormalizeUsername(username)
	if username == "" || password == "" || strings.TrimSpace(role) == "" {
		return nil, shared.ErrInvalidAccount
	}

	taken, err := s.store.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.NewUsernameExistsError(username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, shared.ErrInvalidAccount.WithCause(err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.AccountModel{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Roles:        []string{role},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("account created",
		zap.String("account_id", account.ID),
		zap.String("username", username),
		zap.String("role", role),
	)
	return account.ToDomain(), nil
}

// DeleteAccount removes the account with id. Used to undo CreateAccount when
// the linked customer could not be stored.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logger.WithLogger(ctx, s.logger).Info("account deleted", zap.String("account_id", id))
	return nil
}

// FindByUsername returns the account for username, shared.ErrNotFound if absent
func (s *AccountService) FindByUsername(ctx context.Context, username string) (*customer.Account, error) {
	account, err := s.store.FindByUsername(ctx, customer.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	return account.ToDomain(), nil
}

// VerifyPassword reports whether password matches the stored hash. An unknown
// username verifies as false.
func (s *AccountService) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	account, err := s.store.FindByUsername(ctx, customer.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) == nil, nil
}

// HasRole reports whether account was granted role
func HasRole(account *customer.Account, role string) bool {
	return account != nil && slices.Contains(account.Roles, role)
}
