package session

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/storage"
)

type brokenStorage struct{}

func (brokenStorage) Get(string) (string, bool, error) { return "", false, storage.ErrUnavailable }
func (brokenStorage) Set(string, string) error         { return storage.ErrUnavailable }
func (brokenStorage) Remove(string) error              { return storage.ErrUnavailable }
func (brokenStorage) Close() error                     { return nil }

func TestGetOrCreateIsStableAcrossStores(t *testing.T) {
	backing := storage.NewMemory()

	first := NewStore(backing, "").GetOrCreate()
	second := NewStore(backing, "").GetOrCreate()

	assert.Equal(t, first, second)
	_, err := uuid.Parse(first)
	assert.NoError(t, err)

	stored, ok, err := backing.Get(DefaultKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestClearingStorageYieldsNewID(t *testing.T) {
	backing := storage.NewMemory()
	store := NewStore(backing, "sid")

	before := store.GetOrCreate()
	require.NoError(t, store.Reset())
	after := NewStore(backing, "sid").GetOrCreate()

	assert.NotEqual(t, before, after)
}

func TestGetOrCreateSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	f1, err := storage.NewFile(path)
	require.NoError(t, err)
	id := NewStore(f1, "").GetOrCreate()

	f2, err := storage.NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, id, NewStore(f2, "").GetOrCreate())
}

func TestUnavailableStorageDegradesToEphemeralID(t *testing.T) {
	store := NewStore(brokenStorage{}, "")
	minted := 0
	store.newID = func() string {
		minted++
		return uuid.NewString()
	}

	a := store.GetOrCreate()
	b := store.GetOrCreate()

	assert.NotEmpty(t, a)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, minted)

	_ = store.Reset()
	assert.NotEqual(t, a, store.GetOrCreate())
	assert.Equal(t, 2, minted)
}

// readOnlyStorage reads fine but refuses writes.
type readOnlyStorage struct{ storage.Memory }

func (*readOnlyStorage) Set(string, string) error { return storage.ErrUnavailable }

func TestUnwritableStorageKeepsOneID(t *testing.T) {
	store := NewStore(&readOnlyStorage{}, "")

	a := store.GetOrCreate()
	assert.Equal(t, a, store.GetOrCreate())
}

func TestExistingIDIsNeverRewritten(t *testing.T) {
	backing := storage.NewMemory()
	require.NoError(t, backing.Set(DefaultKey, "preexisting"))

	assert.Equal(t, "preexisting", NewStore(backing, "").GetOrCreate())
}
