package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBackend(t *testing.T) {
	testCases := []struct {
		name     string
		sel      Selection
		expected Backend
	}{
		{name: "development without url", sel: Selection{}, expected: BackendSQLite},
		{name: "development with url", sel: Selection{DatabaseURL: "postgres://h/db"}, expected: BackendSQLite},
		{name: "production without url", sel: Selection{Production: true}, expected: BackendSQLite},
		{name: "production with url", sel: Selection{Production: true, DatabaseURL: "postgres://h/db"}, expected: BackendPostgres},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SelectBackend(tc.sel))
		})
	}
}

func TestOpen_EmbeddedBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habits.db")

	store, err := Open(context.Background(), Selection{DatabaseURL: "postgres://ignored/db", SQLitePath: path})
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &SQLiteStore{}, store)
	assert.Equal(t, path, store.Path())
}

func TestOpenStore_UnsupportedBackend(t *testing.T) {
	store, err := OpenStore(context.Background(), Backend("mongo"), "whatever")
	assert.Nil(t, store)
	assert.Error(t, err)
}
