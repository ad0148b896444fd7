package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add customer index", "add_customer_index"},
		{"Add-Customer-Index", "add_customer_index"},
		{"ADD__CUSTOMER__INDEX", "add_customer_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "special_chars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create customers")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_customers.up.sql"), first.UpPath)
	assert.FileExists(t, first.DownPath)

	second, err := CreateMigration(dir, "Add Index")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)

	content, err := os.ReadFile(second.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "add_index")

	t.Run("empty name", func(t *testing.T) {
		_, err := CreateMigration(dir, "!!!")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("ordered by version", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"000010_late.up.sql", "000010_late.down.sql",
			"000002_early.up.sql", "000002_early.down.sql",
			"README.md",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}

		pairs, err := ListMigrations(os.DirFS(dir))
		require.NoError(t, err)
		require.Len(t, pairs, 2)
		assert.Equal(t, uint(2), pairs[0].Version)
		assert.Equal(t, "early", pairs[0].Name)
		assert.Equal(t, "000010_late.down.sql", pairs[1].DownPath)
	})

	t.Run("missing directory", func(t *testing.T) {
		pairs, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})
}

func TestEmbedded(t *testing.T) {
	pairs, err := Embedded()
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "create_customers", pairs[0].Name)
	assert.Equal(t, "create_accounts", pairs[1].Name)
}
