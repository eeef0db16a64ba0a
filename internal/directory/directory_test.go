package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRefresh(t *testing.T) {
	docs := &provider.MockDocumentStore{}
	docs.On("ListAll", mock.Anything, provider.UsersCollection).Return([]provider.Document{
		{ID: "u1", Fields: map[string]any{"username": "ali", "name": "Ali", "year": float64(2)}},
		{ID: "u2", Fields: map[string]any{"username": "alice", "name": "Alice", "isAlumni": true}},
	}, nil)

	cache := NewCache(docs, testutil.TestLogger(t))
	require.NoError(t, cache.Refresh(context.Background()), "expected refresh to succeed")

	entries := cache.Entries()
	require.Len(t, entries, 2, "expected both users cached")
	assert.Equal(t, "ali", entries[0].Handle, "expected source order preserved")
	assert.Equal(t, 2, entries[0].Year, "expected numeric year decoded")
	assert.True(t, entries[1].IsAlumni, "expected alumni flag carried")

	entry, ok := cache.Lookup("alice")
	require.True(t, ok, "expected lookup hit for known handle")
	assert.Equal(t, "Alice", entry.Name)

	_, ok = cache.Lookup("bob")
	assert.False(t, ok, "expected lookup miss for unknown handle")
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	docs := &provider.MockDocumentStore{}
	docs.On("ListAll", mock.Anything, provider.UsersCollection).Return([]provider.Document{
		{ID: "u1", Fields: map[string]any{"username": "ali"}},
	}, nil).Once()
	docs.On("ListAll", mock.Anything, provider.UsersCollection).
		Return(nil, errors.New("backend unreachable")).Once()

	cache := NewCache(docs, testutil.TestLogger(t))
	require.NoError(t, cache.Refresh(context.Background()))

	err := cache.Refresh(context.Background())
	require.Error(t, err, "expected refresh failure to surface")
	assert.Equal(t, clienterr.KindDirectoryUnavailable, clienterr.KindOf(err), "expected a directory-unavailable kind")
	assert.Len(t, cache.Entries(), 1, "expected previous snapshot to survive a failed refresh")
}
