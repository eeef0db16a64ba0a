package local

import (
	"context"
	"sync"

	"github.com/campuschat/campuschat/internal/provider"
)

type DocumentStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	order       map[string][]string
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]map[string]any),
		order:       make(map[string][]string),
	}
}

func (ds *DocumentStore) Get(_ context.Context, collection, id string) (provider.Document, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	fields, ok := ds.collections[collection][id]
	if !ok {
		return provider.Document{}, provider.ErrNotFound
	}

	return provider.Document{ID: id, Fields: copyFields(fields)}, nil
}

// Put creates the document if absent and merges fields into it otherwise.
func (ds *DocumentStore) Put(_ context.Context, collection, id string, fields map[string]any) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	col, ok := ds.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		ds.collections[collection] = col
	}

	doc, ok := col[id]
	if !ok {
		doc = make(map[string]any)
		col[id] = doc
		ds.order[collection] = append(ds.order[collection], id)
	}
	for k, v := range fields {
		doc[k] = v
	}

	return nil
}

// ListAll returns every document in insertion order.
func (ds *DocumentStore) ListAll(_ context.Context, collection string) ([]provider.Document, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ids := ds.order[collection]
	docs := make([]provider.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, provider.Document{
			ID:     id,
			Fields: copyFields(ds.collections[collection][id]),
		})
	}

	return docs, nil
}

func copyFields(fields map[string]any) map[string]any {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return cp
}
