package customer

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/customer/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValuesService(t *testing.T) {
	ctx := context.Background()

	t.Run("count", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("Count", mock.Anything).Return(int64(42), nil)
		svc := NewValuesService(repo, nil, nil, DefaultConfig())

		n, err := svc.Count(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("count store failure", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("Count", mock.Anything).Return(int64(0), errors.New("down"))
		svc := NewValuesService(repo, nil, nil, DefaultConfig())

		_, err := svc.Count(ctx)

		assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
	})

	t.Run("last names by prefix", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindLastNamesByPrefix", mock.Anything, "Mü").Return([]string{"Müller", "Münster"}, nil)
		svc := NewValuesService(repo, nil, nil, DefaultConfig())

		names, err := svc.FindLastNamesByPrefix(ctx, "Mü")

		require.NoError(t, err)
		assert.Equal(t, []string{"Müller", "Münster"}, names)
	})

	t.Run("emails by prefix are matched lowercased", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindEmailsByPrefix", mock.Anything, "mue").Return([]string{"mueller@example.com"}, nil)
		svc := NewValuesService(repo, nil, nil, DefaultConfig())

		emails, err := svc.FindEmailsByPrefix(ctx, "MUE")

		require.NoError(t, err)
		assert.Equal(t, []string{"mueller@example.com"}, emails)
	})

	t.Run("version of existing customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, testID).Return(storedCustomer(6), nil)
		metrics := newRecordingMetrics()
		svc := NewValuesService(repo, nil, metrics, DefaultConfig())

		version, found, err := svc.FindVersionByID(ctx, testID)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 6, version)
		assert.Equal(t, []string{OutcomeOK}, metrics.outcomes["version_by_id"])
	})

	t.Run("version of unknown customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		repo.On("FindByID", mock.Anything, testID).Return(nil, shared.ErrNotFound)
		svc := NewValuesService(repo, nil, nil, DefaultConfig())

		_, found, err := svc.FindVersionByID(ctx, testID)

		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		token string
		want  int
		ok    bool
	}{
		{"0", 0, true},
		{"12", 12, true},
		{`"3"`, 3, true},
		{" 4\t", 4, true},
		{"", 0, false},
		{`"`, 0, false},
		{"v1", 0, false},
		{"1.5", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseVersion(tt.token)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, `"3"`, FormatVersion(3))
	v, ok := ParseVersion(FormatVersion(17))
	assert.True(t, ok)
	assert.Equal(t, 17, v)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, "email_exists", Outcome(shared.NewEmailExistsError("a@b.c")))
	assert.Equal(t, "validation_failed", Outcome(shared.NewValidationError()))
	assert.Equal(t, OutcomeError, Outcome(errors.New("plain")))
}

func TestToCustomerResponse(t *testing.T) {
	c := storedCustomer(3)

	resp := ToCustomerResponse(c)

	assert.Equal(t, testID, resp.ID)
	assert.Equal(t, `"3"`, resp.ETag)
	assert.Equal(t, "76133", resp.Address.PostalCode)
	assert.Nil(t, resp.Revenue)
	assert.Nil(t, resp.CreatedAt)
}
