package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/campuschat/campuschat/internal/provider"
)

type document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (c *Client) Get(ctx context.Context, collection, id string) (provider.Document, error) {
	var doc document
	err := c.doJSON(ctx, http.MethodGet, docPath(collection, id), nil, &doc)
	if err != nil {
		return provider.Document{}, fmt.Errorf("get document: %w", err)
	}

	return provider.Document{ID: doc.ID, Fields: doc.Fields}, nil
}

func (c *Client) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := c.doJSON(ctx, http.MethodPut, docPath(collection, id), fields, nil); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (c *Client) ListAll(ctx context.Context, collection string) ([]provider.Document, error) {
	var docs []document
	err := c.doJSON(ctx, http.MethodGet, "/api/docs/"+url.PathEscape(collection), nil, &docs)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	out := make([]provider.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, provider.Document{ID: doc.ID, Fields: doc.Fields})
	}
	return out, nil
}

func docPath(collection, id string) string {
	return "/api/docs/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}
