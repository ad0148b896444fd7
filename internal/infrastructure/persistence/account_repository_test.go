package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormAccountRepository(newSQLiteDatabase(t).DB)

	account := &models.AccountModel{
		ID:           uuid.NewString(),
		Username:     "alpha",
		PasswordHash: "$2a$04$hash",
		Roles:        []string{"ROLE_CUSTOMER"},
	}
	require.NoError(t, repo.Create(ctx, account))

	t.Run("finds by username", func(t *testing.T) {
		found, err := repo.FindByUsername(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, account.ID, found.ID)
		assert.Equal(t, []string{"ROLE_CUSTOMER"}, found.Roles)
		assert.False(t, found.CreatedAt.IsZero())
	})

	t.Run("missing username is not found", func(t *testing.T) {
		_, err := repo.FindByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := repo.Create(ctx, &models.AccountModel{ID: uuid.NewString(), Username: "alpha", PasswordHash: "x"})
		assert.ErrorIs(t, err, shared.ErrUsernameExists)
	})

	t.Run("exists", func(t *testing.T) {
		exists, err := repo.ExistsByUsername(ctx, "alpha")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, account.ID))

		exists, err := repo.ExistsByUsername(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, repo.Delete(ctx, account.ID), "deleting twice succeeds")
	})
}

func TestGormAccountRepository_ExistsQuery(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "accounts" WHERE username = \$1`).
		WithArgs("alpha").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err := NewGormAccountRepository(db.DB).ExistsByUsername(context.Background(), "alpha")

	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
