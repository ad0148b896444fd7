package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/auth"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/erp/customer/internal/infrastructure/persistence"
	"github.com/erp/customer/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) Create(ctx context.Context, account *models.AccountModel) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockAccountStore) FindByUsername(ctx context.Context, username string) (*models.AccountModel, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountModel), args.Error(1)
}

func (m *mockAccountStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newSQLiteAccountService(t *testing.T, opts ...auth.Option) *auth.AccountService {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		Path:     ":memory:",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	opts = append([]auth.Option{auth.WithBcryptCost(bcrypt.MinCost)}, opts...)
	return auth.NewAccountService(persistence.NewGormAccountRepository(db.DB), opts...)
}

func TestAccountService_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with normalized username", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		svc := newSQLiteAccountService(t, auth.WithLogger(zap.New(core)))

		account, err := svc.CreateAccount(ctx, "  Alpha ", "p@ss", customer.RoleCustomer)

		require.NoError(t, err)
		assert.NotEmpty(t, account.ID)
		assert.Equal(t, "alpha", account.Username)
		assert.Equal(t, []string{customer.RoleCustomer}, account.Roles)
		assert.True(t, auth.HasRole(account, customer.RoleCustomer))
		assert.Equal(t, 1, logs.FilterMessage("account created").Len())
	})

	t.Run("rejects a taken username regardless of case", func(t *testing.T) {
		svc := newSQLiteAccountService(t)
		_, err := svc.CreateAccount(ctx, "alpha", "p@ss", customer.RoleCustomer)
		require.NoError(t, err)

		_, err = svc.CreateAccount(ctx, "ALPHA", "other", customer.RoleCustomer)
		assert.ErrorIs(t, err, shared.ErrUsernameExists)
	})

	t.Run("rejects incomplete credentials", func(t *testing.T) {
		svc := auth.NewAccountService(&mockAccountStore{})

		for _, tc := range []struct{ username, password, role string }{
			{"", "p@ss", customer.RoleCustomer},
			{"alpha", "", customer.RoleCustomer},
			{"alpha", "p@ss", " "},
		} {
			_, err := svc.CreateAccount(ctx, tc.username, tc.password, tc.role)
			assert.ErrorIs(t, err, shared.ErrInvalidAccount)
		}
	})

	t.Run("rejects passwords bcrypt cannot hash", func(t *testing.T) {
		store := &mockAccountStore{}
		store.On("ExistsByUsername", ctx, "alpha").Return(false, nil)
		svc := auth.NewAccountService(store, auth.WithBcryptCost(bcrypt.MinCost))

		_, err := svc.CreateAccount(ctx, "alpha", strings.Repeat("x", 73), customer.RoleCustomer)

		assert.ErrorIs(t, err, shared.ErrInvalidAccount)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("propagates store failures", func(t *testing.T) {
		storeErr := errors.New("connection refused")
		store := &mockAccountStore{}
		store.On("ExistsByUsername", ctx, "alpha").Return(false, storeErr)
		svc := auth.NewAccountService(store)

		_, err := svc.CreateAccount(ctx, "alpha", "p@ss", customer.RoleCustomer)

		assert.ErrorIs(t, err, storeErr)
		store.AssertExpectations(t)
	})
}

func TestAccountService_DeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("frees the username", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		svc := newSQLiteAccountService(t, auth.WithLogger(zap.New(core)))
		created, err := svc.CreateAccount(ctx, "alpha", "p@ss", customer.RoleCustomer)
		require.NoError(t, err)

		require.NoError(t, svc.DeleteAccount(ctx, created.ID))

		_, err = svc.FindByUsername(ctx, "alpha")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = svc.CreateAccount(ctx, "alpha", "other", customer.RoleCustomer)
		assert.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("account deleted").Len())
	})

	t.Run("missing account", func(t *testing.T) {
		svc := newSQLiteAccountService(t)
		assert.NoError(t, svc.DeleteAccount(ctx, "00000000-0000-0000-0000-000000000000"))
	})

	t.Run("propagates store failures", func(t *testing.T) {
		storeErr := errors.New("connection refused")
		store := &mockAccountStore{}
		store.On("Delete", ctx, "acc-1").Return(storeErr)

		err := auth.NewAccountService(store).DeleteAccount(ctx, "acc-1")

		assert.ErrorIs(t, err, storeErr)
	})
}

func TestAccountService_VerifyPassword(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteAccountService(t)
	_, err := svc.CreateAccount(ctx, "alpha", "correct horse", customer.RoleCustomer)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"matching password", "alpha", "correct horse", true},
		{"username case is ignored", "Alpha", "correct horse", true},
		{"wrong password", "alpha", "battery staple", false},
		{"unknown user", "beta", "correct horse", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.VerifyPassword(ctx, tt.username, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAccountService_FindByUsername(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteAccountService(t)
	created, err := svc.CreateAccount(ctx, "alpha", "p@ss", customer.RoleCustomer)
	require.NoError(t, err)

	found, err := svc.FindByUsername(ctx, "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, created, found)

	_, err = svc.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
