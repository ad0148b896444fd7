package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockCustomerRepository(t *testing.T) (*GormCustomerRepository, sqlmock.Sqlmock, func()) {
	db, mock, mockDB := newMockDatabase(t)
	return NewGormCustomerRepository(db.DB), mock, func() { _ = mockDB.Close() }
}

func TestGormCustomerRepository_FindByID(t *testing.T) {
	t.Run("maps the row to a customer", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		rows := sqlmock.NewRows([]string{
			"id", "version", "last_name", "email", "category", "postal_code", "city", "interests", "revenue_amount", "revenue_currency",
		}).AddRow("c-1", 3, "Alpha", "alpha@acme.com", 1, "12345", "Berlin", `["SPORTS"]`, "100.50", "EUR")

		mock.ExpectQuery(`SELECT \* FROM "customers" WHERE id = \$1`).
			WithArgs("c-1", 1).
			WillReturnRows(rows)

		c, err := repo.FindByID(context.Background(), "c-1")

		require.NoError(t, err)
		assert.Equal(t, "c-1", c.ID)
		assert.Equal(t, 3, c.Version)
		assert.Equal(t, "Alpha", c.LastName)
		assert.Equal(t, []customer.Interest{customer.InterestSports}, c.Interests)
		require.NotNil(t, c.Revenue)
		assert.True(t, c.Revenue.Amount.Equal(decimal.RequireFromString("100.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing id", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT \* FROM "customers" WHERE id = \$1`).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.FindByID(context.Background(), "missing")

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		driverErr := errors.New("connection reset")
		mock.ExpectQuery(`SELECT \* FROM "customers"`).WillReturnError(driverErr)

		_, err := repo.FindByID(context.Background(), "c-1")

		assert.ErrorIs(t, err, driverErr)
		assert.NotErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormCustomerRepository_SaveWithLock(t *testing.T) {
	t.Run("updates guarded by version and advances it", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		mock.ExpectExec(`UPDATE "customers" SET .* WHERE .*id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		c := &customer.Customer{LastName: "Alpha", Email: "alpha@acme.com"}
		c.ID = "c-1"
		c.Version = 2

		require.NoError(t, repo.SaveWithLock(context.Background(), c))
		assert.Equal(t, 3, c.Version)
		assert.False(t, c.ModifiedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race is a concurrency conflict", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		mock.ExpectExec(`UPDATE "customers" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		c := &customer.Customer{LastName: "Alpha", Email: "alpha@acme.com"}
		c.ID = "c-1"
		c.Version = 2

		err := repo.SaveWithLock(context.Background(), c)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 2, c.Version)
	})
}

func TestGormCustomerRepository_DeleteByID(t *testing.T) {
	t.Run("deletes existing customer", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		mock.ExpectExec(`DELETE FROM "customers" WHERE id = \$1`).
			WithArgs("c-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteByID(context.Background(), "c-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when nothing was deleted", func(t *testing.T) {
		repo, mock, closeDB := newMockCustomerRepository(t)
		defer closeDB()

		mock.ExpectExec(`DELETE FROM "customers" WHERE id = \$1`).
			WithArgs("c-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.DeleteByID(context.Background(), "c-1"), shared.ErrNotFound)
	})
}

func TestGormCustomerRepository_ExistsByEmail(t *testing.T) {
	repo, mock, closeDB := newMockCustomerRepository(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "customers" WHERE email = \$1`).
		WithArgs("alpha@acme.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "Alpha@ACME.com")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCriteria(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	dryRun := func(criteria []customer.Criterion) (string, []any, error) {
		query, err := applyCriteria(db.DB.Session(&gorm.Session{DryRun: true}).Model(&models.CustomerModel{}), criteria)
		if err != nil {
			return "", nil, err
		}
		stmt := query.Find(&[]models.CustomerModel{}).Statement
		return stmt.SQL.String(), stmt.Vars, nil
	}

	tests := []struct {
		name     string
		criteria []customer.Criterion
		sql      string
		vars     []any
	}{
		{
			name:     "contains is lowercased and escaped",
			criteria: []customer.Criterion{{Field: customer.FieldLastName, Op: customer.OpContains, Value: "Al_Pha%"}},
			sql:      `LOWER(last_name) LIKE $1 ESCAPE '\'`,
			vars:     []any{`%al\_pha\%%`},
		},
		{
			name:     "prefix keeps case",
			criteria: []customer.Criterion{{Field: customer.FieldPostalCode, Op: customer.OpPrefix, Value: "12"}},
			sql:      `postal_code LIKE $1 ESCAPE '\'`,
			vars:     []any{"12%"},
		},
		{
			name:     "category equals",
			criteria: []customer.Criterion{{Field: customer.FieldCategory, Op: customer.OpEquals, Value: 3}},
			sql:      `category = $1`,
			vars:     []any{3},
		},
		{
			name:     "gender equals",
			criteria: []customer.Criterion{{Field: customer.FieldGender, Op: customer.OpEquals, Value: customer.GenderFemale}},
			sql:      `gender = $1`,
			vars:     []any{"FEMALE"},
		},
		{
			name: "interests require every element",
			criteria: []customer.Criterion{{
				Field: customer.FieldInterests, Op: customer.OpContainsAll,
				Value: []customer.Interest{customer.InterestSports, customer.InterestTravel},
			}},
			sql:  `interests LIKE $1 AND interests LIKE $2`,
			vars: []any{`%"SPORTS"%`, `%"TRAVEL"%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, vars, err := dryRun(tt.criteria)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.sql)
			assert.Equal(t, tt.vars, vars)
		})
	}

	t.Run("revenue is a lower bound", func(t *testing.T) {
		sql, vars, err := dryRun([]customer.Criterion{{
			Field: customer.FieldRevenue, Op: customer.OpGreaterOrEqual, Value: decimal.NewFromInt(1000),
		}})
		require.NoError(t, err)
		assert.Contains(t, sql, `revenue_amount >= $1`)
		require.Len(t, vars, 1)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, _, err := dryRun([]customer.Criterion{{Field: "shoeSize", Op: customer.OpEquals, Value: 42}})
		assert.ErrorIs(t, err, customer.ErrInvalidCriterion)
	})

	t.Run("unsupported value type is rejected", func(t *testing.T) {
		_, _, err := dryRun([]customer.Criterion{{Field: customer.FieldCity, Op: customer.OpEquals, Value: 1.5}})
		assert.ErrorIs(t, err, customer.ErrInvalidCriterion)
	})
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
