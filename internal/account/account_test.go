package account

import (
	"context"
	"errors"
	"testing"

	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/session"
	"github.com/campuschat/campuschat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, creds *provider.MockCredentialProvider, docs *provider.MockDocumentStore) (*Manager, *session.Guard) {
	t.Helper()

	guard := session.NewGuard(creds, testutil.TestLogger(t))
	t.Cleanup(guard.Deactivate)

	return NewManager(creds, docs, guard, testutil.TestLogger(t)), guard
}

func TestLogin(t *testing.T) {
	t.Run("success activates the session", func(t *testing.T) {
		creds := &provider.MockCredentialProvider{}
		creds.On("Authenticate", mock.Anything, "ali@example.edu", "hunter2").
			Return(provider.Credentials{UserID: "u1", Verified: true}, nil)

		docs := &provider.MockDocumentStore{}
		docs.On("Get", mock.Anything, provider.UsersCollection, "u1").
			Return(provider.Document{ID: "u1", Fields: map[string]any{"username": "ali", "name": "Ali"}}, nil)

		m, guard := newManager(t, creds, docs)
		entry, err := m.Login(context.Background(), "ali@example.edu", "hunter2")
		require.NoError(t, err, "expected login to succeed")

		assert.Equal(t, "ali", entry.Handle)
		assert.True(t, guard.Active(), "expected the session guard activated")
	})

	t.Run("bad credentials surface the provider message", func(t *testing.T) {
		creds := &provider.MockCredentialProvider{}
		creds.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).
			Return(provider.Credentials{}, errors.New("wrong password"))

		m, guard := newManager(t, creds, &provider.MockDocumentStore{})
		_, err := m.Login(context.Background(), "ali@example.edu", "nope")

		require.Error(t, err)
		assert.Equal(t, clienterr.KindAuthRejected, clienterr.KindOf(err), "expected an auth-rejected kind")
		assert.False(t, guard.Active(), "expected no session")
	})

	t.Run("unverified account revoked with distinct message", func(t *testing.T) {
		creds := &provider.MockCredentialProvider{}
		creds.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).
			Return(provider.Credentials{UserID: "u1", Verified: false}, nil)
		creds.On("Revoke", mock.Anything).Return(nil).Once()

		m, guard := newManager(t, creds, &provider.MockDocumentStore{})
		_, err := m.Login(context.Background(), "new@example.edu", "secret")

		require.Error(t, err)
		assert.Equal(t, clienterr.KindUnverifiedAccount, clienterr.KindOf(err), "expected the verification-gate kind")
		assert.False(t, guard.Active(), "expected no session after forced sign-out")
		creds.AssertExpectations(t)
	})
}

func TestRegister(t *testing.T) {
	creds := &provider.MockCredentialProvider{}
	creds.On("Register", mock.Anything, "new@example.edu", "secret").
		Return(provider.Credentials{UserID: "u9", Verified: true}, nil)

	var written map[string]any
	docs := &provider.MockDocumentStore{}
	docs.On("Put", mock.Anything, provider.UsersCollection, "u9", mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(3).(map[string]any) }).
		Return(nil)
	docs.On("Get", mock.Anything, provider.UsersCollection, "u9").
		Return(provider.Document{ID: "u9", Fields: map[string]any{"username": "new", "name": "User"}}, nil)

	m, _ := newManager(t, creds, docs)
	entry, err := m.Register(context.Background(), "new@example.edu", "secret", "", "")
	require.NoError(t, err, "expected registration to succeed")

	assert.Equal(t, "new", entry.Handle, "expected the handle derived from the email")
	assert.Equal(t, defaultAvatarURL, written["avatar"], "expected the default avatar written")
	assert.Contains(t, accentPalette, written["color"], "expected an accent color from the palette")
	assert.Equal(t, "new", written["username"])
	assert.NotEmpty(t, written["createdAt"], "expected creation timestamp set")
}

func TestLogout(t *testing.T) {
	creds := &provider.MockCredentialProvider{}
	creds.On("Revoke", mock.Anything).Return(nil).Once()

	m, guard := newManager(t, creds, &provider.MockDocumentStore{})
	guard.Activate(context.Background())

	expired := false
	guard.OnExpire(func() { expired = true })

	require.NoError(t, m.Logout(context.Background()), "expected logout to succeed")
	assert.False(t, guard.Active(), "expected the session gone")
	assert.False(t, expired, "expected explicit logout not to fire expiry callbacks")
	creds.AssertExpectations(t)
}

func TestByHandle(t *testing.T) {
	docs := &provider.MockDocumentStore{}
	docs.On("ListAll", mock.Anything, provider.UsersCollection).Return([]provider.Document{
		{ID: "u1", Fields: map[string]any{"username": "ali", "name": "Ali"}},
		{ID: "u2", Fields: map[string]any{"username": "alice", "name": "Alice"}},
	}, nil)

	m, _ := newManager(t, &provider.MockCredentialProvider{}, docs)

	entry, err := m.ByHandle(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u2", entry.Id)

	_, err = m.ByHandle(context.Background(), "ghost")
	assert.True(t, IsNotFound(err), "expected a not-found error for an unknown handle")
}

func TestUpdateProfile(t *testing.T) {
	var written map[string]any
	docs := &provider.MockDocumentStore{}
	docs.On("Put", mock.Anything, provider.UsersCollection, "u1", mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(3).(map[string]any) }).
		Return(nil)

	m, _ := newManager(t, &provider.MockCredentialProvider{}, docs)
	require.NoError(t, m.UpdateProfile(context.Background(), "u1", map[string]any{"about": "hi"}))

	assert.Equal(t, "hi", written["about"], "expected the field forwarded")
	assert.NotEmpty(t, written["updatedAt"], "expected updatedAt bumped")
}
