// Package local implements the backend capabilities in process. It backs the
// -local development mode and the integration-style tests; no network is
// involved and all state lives in memory.
package local

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/campuschat/campuschat/internal/provider"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 10 * time.Hour

type account struct {
	userID   string
	pwdHash  string
	verified bool
}

type CredentialStore struct {
	log      *log.Logger
	mu       sync.Mutex
	accounts map[string]account
	current  string
}

func NewCredentialStore(logger *log.Logger) *CredentialStore {
	return &CredentialStore{
		log:      logger,
		accounts: make(map[string]account),
	}
}

// AddAccount seeds an account directly, bypassing registration. Used to set
// up demo users and unverified accounts in tests.
func (cs *CredentialStore) AddAccount(identifier, secret string, verified bool) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	id := uuid.NewString()
	cs.accounts[identifier] = account{
		userID:   id,
		pwdHash:  string(hash),
		verified: verified,
	}

	return id, nil
}

func (cs *CredentialStore) Authenticate(_ context.Context, identifier, secret string) (provider.Credentials, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	acct, ok := cs.accounts[identifier]
	if !ok {
		return provider.Credentials{}, provider.ErrAuthRejected
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.pwdHash), []byte(secret)); err != nil {
		return provider.Credentials{}, provider.ErrAuthRejected
	}

	cs.current = acct.userID
	return provider.Credentials{UserID: acct.userID, Verified: acct.verified}, nil
}

func (cs *CredentialStore) Register(ctx context.Context, identifier, secret string) (provider.Credentials, error) {
	// No mail delivery in process, so new accounts come up verified.
	id, err := cs.AddAccount(identifier, secret, true)
	if err != nil {
		return provider.Credentials{}, err
	}

	cs.mu.Lock()
	cs.current = id
	cs.mu.Unlock()

	return provider.Credentials{UserID: id, Verified: true}, nil
}

func (cs *CredentialStore) RefreshToken(_ context.Context, force bool) (provider.Token, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.current == "" {
		return provider.Token{}, provider.ErrAuthRejected
	}

	return provider.Token{
		Value:     uuid.NewString(),
		ExpiresAt: time.Now().Add(tokenLifetime),
	}, nil
}

func (cs *CredentialStore) Revoke(_ context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.current = ""
	return nil
}
