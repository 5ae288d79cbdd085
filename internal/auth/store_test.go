package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source shared by stores under test
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)}
}

// storeContract runs the load/save properties every Store must satisfy
func storeContract(t *testing.T, store Store, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store must report absent")

	token := Token{Value: "abc123", ExpiresAt: clock.now.Add(time.Hour)}
	require.NoError(t, store.Save(ctx, token))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, token.Value, got.Value)
	assert.True(t, token.ExpiresAt.Equal(got.ExpiresAt))

	// Still valid one second before expiry
	clock.Advance(time.Hour - time.Second)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Exactly at expiry the token is gone
	clock.Advance(time.Second)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "token at expiresAt must be treated as absent")

	// A newer token overwrites the expired one
	next := Token{Value: "def456", ExpiresAt: clock.now.Add(2 * time.Hour)}
	require.NoError(t, store.Save(ctx, next))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "def456", got.Value)
}

func TestToken_Valid(t *testing.T) {
	now := time.Now()

	assert.True(t, Token{Value: "x", ExpiresAt: now.Add(time.Minute)}.Valid(now))
	assert.False(t, Token{Value: "x", ExpiresAt: now}.Valid(now))
	assert.False(t, Token{Value: "x", ExpiresAt: now.Add(-time.Minute)}.Valid(now))
	assert.False(t, Token{ExpiresAt: now.Add(time.Minute)}.Valid(now))
}

func TestToken_OAuth2(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	tok := Token{Value: "abc", ExpiresAt: exp}.OAuth2()

	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.True(t, tok.Expiry.Equal(exp))
}

func TestMemoryStore(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	store.Now = clock.Now

	storeContract(t, store, clock)
}

func TestMemoryStore_CorruptDataIsAbsent(t *testing.T) {
	store := NewMemoryStore()
	store.data = []byte("{not json")

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore(t *testing.T) {
	clock := newClock()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "token.json"), nil)
	store.Now = clock.Now

	storeContract(t, store, clock)
}

func TestFileStore_PersistsRecordShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path, nil)

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.Save(context.Background(), Token{Value: "abc", ExpiresAt: exp}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"igdb_access_token"`)
	assert.Contains(t, string(data), `"token":"abc"`)
	assert.Contains(t, string(data), `"expirationDate"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_Sealed(t *testing.T) {
	clock := newClock()
	key := &[32]byte{1, 2, 3}
	path := filepath.Join(t.TempDir(), "token.json")

	store := NewFileStore(path, key)
	store.Now = clock.Now
	storeContract(t, store, clock)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "def456", "sealed file must not contain the token in clear")

	// A different key cannot read it and falls back to absent
	other := NewFileStore(path, &[32]byte{9})
	other.Now = clock.Now
	got, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_CorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	store := NewFileStore(path, nil)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	// And it can be overwritten
	require.NoError(t, store.Save(context.Background(), Token{Value: "fresh", ExpiresAt: time.Now().Add(time.Hour)}))
	got, err = store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fresh", got.Value)
}
