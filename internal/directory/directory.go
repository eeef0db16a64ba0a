package directory

import (
	"context"
	"fmt"
	"log"

	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/types"
)

// Cache holds the last-fetched snapshot of all known users. It is refreshed
// wholesale on room entry; the fetch routine is the only writer and is not
// re-entrant, so reads are served from the last complete snapshot.
type Cache struct {
	docs    provider.DocumentStore
	log     *log.Logger
	entries []types.UserEntry
}

func NewCache(docs provider.DocumentStore, logger *log.Logger) *Cache {
	return &Cache{
		docs: docs,
		log:  logger,
	}
}

// Refresh replaces the snapshot with the current users collection. On failure
// the previous snapshot is kept and a DirectoryUnavailable error is returned;
// callers degrade to "no suggestions", never crash.
func (c *Cache) Refresh(ctx context.Context) error {
	docs, err := c.docs.ListAll(ctx, provider.UsersCollection)
	if err != nil {
		c.log.Println("directory fetch failed:", err)
		return fmt.Errorf("refresh directory: %w", clienterr.NewDirectoryUnavailableError(err))
	}

	entries := make([]types.UserEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, entryFromDocument(doc))
	}
	c.entries = entries

	return nil
}

// Entries returns the snapshot in source order.
func (c *Cache) Entries() []types.UserEntry {
	return c.entries
}

// Lookup finds a user by exact handle.
func (c *Cache) Lookup(handle string) (types.UserEntry, bool) {
	for _, e := range c.entries {
		if e.Handle == handle {
			return e, true
		}
	}

	return types.UserEntry{}, false
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
	switch year := doc.Fields["year"].(type) {
	case int:
		e.Year = year
	case float64:
		e.Year = int(year)
	}

	return e
}
