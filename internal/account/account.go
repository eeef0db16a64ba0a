package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/session"
	"github.com/campuschat/campuschat/internal/types"
)

const defaultAvatarURL = "https://www.citypng.com/public/uploads/preview/white-user-member-guest-icon-png-image-701751695037005zdurfaim0y.png"

var accentPalette = []string{"#A84300", "#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A"}

// Manager drives the authentication flows and profile CRUD against the
// external credential provider and document store.
type Manager struct {
	creds provider.CredentialProvider
	docs  provider.DocumentStore
	guard *session.Guard
	log   *log.Logger
}

func NewManager(creds provider.CredentialProvider, docs provider.DocumentStore, guard *session.Guard, logger *log.Logger) *Manager {
	return &Manager{
		creds: creds,
		docs:  docs,
		guard: guard,
		log:   logger,
	}
}

// Login authenticates and, on success, loads the profile document and starts
// the session guard. An account that authenticated but failed the email
// verification gate is revoked immediately and reported with its own message.
func (m *Manager) Login(ctx context.Context, email, password string) (types.UserEntry, error) {
	creds, err := m.creds.Authenticate(ctx, email, password)
	if err != nil {
		return types.UserEntry{}, fmt.Errorf("login: %w", clienterr.NewAuthRejectedError(err))
	}

	if !creds.Verified {
		if err := m.creds.Revoke(ctx); err != nil {
			m.log.Println("revoke after verification gate:", err)
		}
		return types.UserEntry{}, fmt.Errorf("login: %w", clienterr.NewUnverifiedAccountError())
	}

	entry, err := m.Profile(ctx, creds.UserID)
	if err != nil {
		return types.UserEntry{}, fmt.Errorf("load profile: %w", err)
	}

	m.guard.Activate(ctx)
	return entry, nil
}

// Register creates the credential and the initial profile document with the
// service defaults, mirroring first-login document creation.
func (m *Manager) Register(ctx context.Context, email, password, name, handle string) (types.UserEntry, error) {
	creds, err := m.creds.Register(ctx, email, password)
	if err != nil {
		return types.UserEntry{}, fmt.Errorf("register: %w", clienterr.NewAuthRejectedError(err))
	}

	if handle == "" {
		handle = strings.SplitN(email, "@", 2)[0]
	}
	if name == "" {
		name = "User"
	}

	now := time.Now().Format(time.RFC3339)
	fields := map[string]any{
		"name":      name,
		"username":  handle,
		"email":     email,
		"gender":    "Not Specified",
		"role":      "user",
		"isAlumni":  false,
		"avatar":    defaultAvatarURL,
		"color":     accentPalette[rand.Intn(len(accentPalette))],
		"about":     "",
		"course":    "",
		"createdAt": now,
		"updatedAt": now,
	}
	if err := m.docs.Put(ctx, provider.UsersCollection, creds.UserID, fields); err != nil {
		return types.UserEntry{}, fmt.Errorf("create profile: %w", err)
	}

	return m.Profile(ctx, creds.UserID)
}

// Logout ends the session without firing expiry callbacks and revokes the
// credentials.
func (m *Manager) Logout(ctx context.Context) error {
	m.guard.Deactivate()
	if err := m.creds.Revoke(ctx); err != nil {
		return fmt.Errorf("revoke credentials: %w", err)
	}
	return nil
}

// Profile loads a user document by id.
func (m *Manager) Profile(ctx context.Context, userID string) (types.UserEntry, error) {
	doc, err := m.docs.Get(ctx, provider.UsersCollection, userID)
	if err != nil {
		return types.UserEntry{}, fmt.Errorf("get user %s: %w", userID, err)
	}

	return entryFromDocument(doc), nil
}

// UpdateProfile merges fields into the user document, bumping updatedAt.
func (m *Manager) UpdateProfile(ctx context.Context, userID string, fields map[string]any) error {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updatedAt"] = time.Now().Format(time.RFC3339)

	if err := m.docs.Put(ctx, provider.UsersCollection, userID, merged); err != nil {
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	return nil
}

// ByHandle finds a user by unique handle, used for profile navigation from a
// message or mention.
func (m *Manager) ByHandle(ctx context.Context, handle string) (types.UserEntry, error) {
	docs, err := m.docs.ListAll(ctx, provider.UsersCollection)
	if err != nil {
		return types.UserEntry{}, fmt.Errorf("list users: %w", err)
	}

	for _, doc := range docs {
		if h, _ := doc.Fields["username"].(string); h == handle {
			return entryFromDocument(doc), nil
		}
	}

	return types.UserEntry{}, fmt.Errorf("user %q: %w", handle, provider.ErrNotFound)
}

func entryFromDocument(doc provider.Document) types.UserEntry {
	e := types.UserEntry{Id: doc.ID}
	e.Handle, _ = doc.Fields["username"].(string)
	e.Name, _ = doc.Fields["name"].(string)
	e.Email, _ = doc.Fields["email"].(string)
	e.AvatarURL, _ = doc.Fields["avatar"].(string)
	e.AccentColor, _ = doc.Fields["color"].(string)
	e.About, _ = doc.Fields["about"].(string)
	e.Course, _ = doc.Fields["course"].(string)
	e.IsAlumni, _ = doc.Fields["isAlumni"].(bool)
	e.CreatedAt, _ = doc.Fields["createdAt"].(string)
	e.UpdatedAt, _ = doc.Fields["updatedAt"].(string)
	switch year := doc.Fields["year"].(type) {
	case int:
		e.Year = year
	case float64:
		e.Year = int(year)
	}
	return e
}

// IsNotFound reports whether an error stems from an absent document.
func IsNotFound(err error) bool {
	return errors.Is(err, provider.ErrNotFound)
}
