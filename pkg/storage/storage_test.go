package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/config"
)

func drivers(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	f, err := NewFile(filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	s, err := NewSQLite(filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return map[string]Storage{
		"memory": NewMemory(),
		"file":   f,
		"sqlite": s,
	}
}

func TestStorageContract(t *testing.T) {
	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := st.Get("sessionId")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.Set("sessionId", "one"))
			v, ok, err := st.Get("sessionId")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "one", v)

			require.NoError(t, st.Set("sessionId", "two"))
			v, _, _ = st.Get("sessionId")
			assert.Equal(t, "two", v)

			require.NoError(t, st.Remove("sessionId"))
			_, ok, err = st.Get("sessionId")
			require.NoError(t, err)
			assert.False(t, ok)

			// removing a missing key is not an error
			assert.NoError(t, st.Remove("sessionId"))
		})
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("k", "v"))

	second, err := NewFile(path)
	require.NoError(t, err)
	v, ok, err := second.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	first, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("k", "v"))
	require.NoError(t, first.Close())

	second, err := NewSQLite(path)
	require.NoError(t, err)
	defer second.Close()
	v, ok, err := second.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileCorruptIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	_, _, err = f.Get("k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenSelectsDriver(t *testing.T) {
	st, err := Open(config.StorageConfig{Driver: "memory"}, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, st)

	st, err = Open(config.StorageConfig{Driver: "file"}, filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &File{}, st)

	_, err = Open(config.StorageConfig{Driver: "etcd"}, "")
	assert.Error(t, err)
}
