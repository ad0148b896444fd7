package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteCustomerRepository(t *testing.T) *GormCustomerRepository {
	return NewGormCustomerRepository(newSQLiteDatabase(t).DB)
}

func fakeCustomer(f *gofakeit.Faker) *customer.Customer {
	id := uuid.NewString()
	c := &customer.Customer{
		LastName: f.LastName(),
		Email:    customer.NormalizeEmail(id[:8] + "." + f.Email()),
		Category: f.IntRange(customer.MinCategory, customer.MaxCategory),
		Address:  customer.Address{PostalCode: f.Zip(), City: f.City()},
	}
	c.ID = id
	return c
}

func seedCustomer(t *testing.T, repo *GormCustomerRepository, c *customer.Customer) *customer.Customer {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), c))
	return c
}

func TestGormCustomerRepository_SQLite_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	f := gofakeit.New(7)

	birth := time.Date(1985, time.April, 12, 0, 0, 0, 0, time.UTC)

	c := fakeCustomer(f)
	c.BirthDate = &birth
	c.Revenue = &customer.Revenue{Amount: decimal.RequireFromString("2500.75"), Currency: "EUR"}
	c.Interests = []customer.Interest{customer.InterestReading, customer.InterestTravel}
	c.Gender = customer.GenderDiverse
	c.Username = "reader"
	seedCustomer(t, repo, c)

	found, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, c.LastName, found.LastName)
	assert.Equal(t, c.Email, found.Email)
	assert.Equal(t, 0, found.Version)
	assert.Equal(t, c.Interests, found.Interests)
	assert.Equal(t, "reader", found.Username)
	require.NotNil(t, found.Revenue)
	assert.True(t, c.Revenue.Equal(*found.Revenue))
	require.NotNil(t, found.BirthDate)
	assert.True(t, birth.Equal(*found.BirthDate))
	assert.False(t, found.CreatedAt.IsZero())
}

func TestGormCustomerRepository_SQLite_Duplicates(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	f := gofakeit.New(11)

	first := fakeCustomer(f)
	first.Username = "taken"
	seedCustomer(t, repo, first)

	t.Run("email collision", func(t *testing.T) {
		dup := fakeCustomer(f)
		dup.Email = first.Email
		err := repo.Save(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrEmailExists)
	})

	t.Run("username collision", func(t *testing.T) {
		dup := fakeCustomer(f)
		dup.Username = "taken"
		err := repo.Save(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrUsernameExists)
	})

	t.Run("exists checks ignore case", func(t *testing.T) {
		exists, err := repo.ExistsByEmail(ctx, first.Email)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByUsername(ctx, "TAKEN")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestGormCustomerRepository_SQLite_SaveWithLock(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	c := seedCustomer(t, repo, fakeCustomer(gofakeit.New(3)))

	first := c.Clone()
	second := c.Clone()

	first.Address.City = "Hamburg"
	require.NoError(t, repo.SaveWithLock(ctx, &first))
	assert.Equal(t, 1, first.Version)

	second.Address.City = "Munich"
	err := repo.SaveWithLock(ctx, &second)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", stored.Address.City)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, c.CreatedAt.Unix(), stored.CreatedAt.Unix())
}

func TestGormCustomerRepository_SQLite_FindMatching(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	f := gofakeit.New(5)

	alpha := fakeCustomer(f)
	alpha.LastName = "Alpha"
	alpha.Category = 1
	alpha.Address.PostalCode = "12345"
	alpha.Interests = []customer.Interest{customer.InterestSports, customer.InterestTravel}
	alpha.Revenue = &customer.Revenue{Amount: decimal.NewFromInt(5000), Currency: "EUR"}
	seedCustomer(t, repo, alpha)

	umlaut := fakeCustomer(f)
	umlaut.LastName = "ÖZDEMİR-MÜLLER"
	umlaut.Category = 3
	umlaut.Address = customer.Address{PostalCode: "88662", City: "Überlingen"}
	seedCustomer(t, repo, umlaut)

	beta := fakeCustomer(f)
	beta.LastName = "Alphabet_Soup"
	beta.Category = 2
	beta.Address.PostalCode = "99999"
	beta.Interests = []customer.Interest{customer.InterestSports}
	beta.Revenue = &customer.Revenue{Amount: decimal.NewFromInt(100), Currency: "EUR"}
	seedCustomer(t, repo, beta)

	lastNames := func(cs []customer.Customer) []string {
		names := make([]string, len(cs))
		for i := range cs {
			names[i] = cs[i].LastName
		}
		return names
	}

	tests := []struct {
		name     string
		criteria []customer.Criterion
		want     []string
	}{
		{"no criteria returns all", nil, []string{"Alpha", "Alphabet_Soup", "ÖZDEMİR-MÜLLER"}},
		{"contains folds non-ascii letters", []customer.Criterion{{Field: customer.FieldLastName, Op: customer.OpContains, Value: "müller"}}, []string{"ÖZDEMİR-MÜLLER"}},
		{"city contains folds non-ascii letters", []customer.Criterion{
			{Field: customer.FieldCity, Op: customer.OpContains, Value: "überl"},
			{Field: customer.FieldCategory, Op: customer.OpEquals, Value: 3},
		}, []string{"ÖZDEMİR-MÜLLER"}},
		{"contains ignores case", []customer.Criterion{{Field: customer.FieldLastName, Op: customer.OpContains, Value: "ALPHA"}}, []string{"Alpha", "Alphabet_Soup"}},
		{"underscore is literal", []customer.Criterion{{Field: customer.FieldLastName, Op: customer.OpContains, Value: "t_s"}}, []string{"Alphabet_Soup"}},
		{"postal code prefix", []customer.Criterion{{Field: customer.FieldPostalCode, Op: customer.OpPrefix, Value: "123"}}, []string{"Alpha"}},
		{"category", []customer.Criterion{{Field: customer.FieldCategory, Op: customer.OpEquals, Value: 2}}, []string{"Alphabet_Soup"}},
		{"revenue lower bound", []customer.Criterion{{Field: customer.FieldRevenue, Op: customer.OpGreaterOrEqual, Value: decimal.NewFromInt(1000)}}, []string{"Alpha"}},
		{"all interests", []customer.Criterion{{Field: customer.FieldInterests, Op: customer.OpContainsAll, Value: []customer.Interest{customer.InterestTravel, customer.InterestSports}}}, []string{"Alpha"}},
		{"criteria are conjunctive", []customer.Criterion{
			{Field: customer.FieldLastName, Op: customer.OpContains, Value: "alpha"},
			{Field: customer.FieldCategory, Op: customer.OpEquals, Value: 9},
		}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindMatching(ctx, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lastNames(got))
		})
	}
}

func TestGormCustomerRepository_SQLite_Stream(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	f := gofakeit.New(9)

	const total = streamBatchSize + 25
	for range total {
		seedCustomer(t, repo, fakeCustomer(f))
	}

	t.Run("visits every customer", func(t *testing.T) {
		seen := map[string]bool{}
		err := repo.Stream(ctx, func(c customer.Customer) error {
			seen[c.ID] = true
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, seen, total)
	})

	t.Run("stops at the first callback error", func(t *testing.T) {
		stop := errors.New("stop")
		visited := 0
		err := repo.Stream(ctx, func(customer.Customer) error {
			visited++
			if visited == 3 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 3, visited)
	})
}

func TestGormCustomerRepository_SQLite_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	f := gofakeit.New(13)

	a := seedCustomer(t, repo, fakeCustomer(f))
	b := seedCustomer(t, repo, fakeCustomer(f))

	require.NoError(t, repo.DeleteByID(ctx, a.ID))
	assert.ErrorIs(t, repo.DeleteByID(ctx, a.ID), shared.ErrNotFound)

	require.NoError(t, repo.DeleteByEmail(ctx, customer.NormalizeEmail(b.Email)))
	require.NoError(t, repo.DeleteByEmail(ctx, "absent@example.com"))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGormCustomerRepository_SQLite_Prefixes(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteCustomerRepository(t)
	f := gofakeit.New(17)

	for _, entry := range []struct{ lastName, email string }{
		{"Miller", "miller@acme.com"},
		{"Miller", "m.miller@acme.com"},
		{"Mills", "mills@acme.com"},
		{"Baker", "baker@acme.com"},
	} {
		c := fakeCustomer(f)
		c.LastName = entry.lastName
		c.Email = entry.email
		seedCustomer(t, repo, c)
	}

	names, err := repo.FindLastNamesByPrefix(ctx, "mil")
	require.NoError(t, err)
	assert.Equal(t, []string{"Miller", "Mills"}, names)

	emails, err := repo.FindEmailsByPrefix(ctx, "M")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.miller@acme.com", "miller@acme.com", "mills@acme.com"}, emails)

	none, err := repo.FindLastNamesByPrefix(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, none)
}
