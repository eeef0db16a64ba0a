// Package remote implements the backend capabilities over the service's HTTP
// and websocket API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/campuschat/campuschat/internal/config"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/golang-jwt/jwt"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *log.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(cfg *config.Config, logger *log.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		log:     logger,
	}
}

type authResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Verified bool   `json:"verified"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) Authenticate(ctx context.Context, identifier, secret string) (provider.Credentials, error) {
	var resp authResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    identifier,
		"password": secret,
	}, &resp)
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("%w: %s", provider.ErrAuthRejected, err)
	}

	c.storeToken(resp.Token)
	return provider.Credentials{UserID: resp.UserID, Verified: resp.Verified}, nil
}

func (c *Client) Register(ctx context.Context, identifier, secret string) (provider.Credentials, error) {
	var resp authResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    identifier,
		"password": secret,
	}, &resp)
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("register: %w", err)
	}

	c.storeToken(resp.Token)
	return provider.Credentials{UserID: resp.UserID, Verified: resp.Verified}, nil
}

func (c *Client) RefreshToken(ctx context.Context, force bool) (provider.Token, error) {
	c.mu.Lock()
	current := c.token
	exp := c.tokenExp
	c.mu.Unlock()

	if current == "" {
		return provider.Token{}, provider.ErrAuthRejected
	}
	// Skip the round trip while the token is comfortably fresh.
	if !force && time.Until(exp) > time.Hour {
		return provider.Token{Value: current, ExpiresAt: exp}, nil
	}

	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", nil, &resp); err != nil {
		return provider.Token{}, fmt.Errorf("refresh token: %w", err)
	}

	c.storeToken(resp.Token)

	c.mu.Lock()
	defer c.mu.Unlock()
	return provider.Token{Value: c.token, ExpiresAt: c.tokenExp}, nil
}

func (c *Client) Revoke(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)

	c.mu.Lock()
	c.token = ""
	c.tokenExp = time.Time{}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

// storeToken records the bearer token and its expiry from the exp claim. The
// signature is the server's concern; the client only reads the claims.
func (c *Client) storeToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.tokenExp = time.Time{}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		c.log.Println("parse token claims:", err)
		return
	}
	if exp, ok := claims["exp"].(float64); ok {
		c.tokenExp = time.Unix(int64(exp), 0)
	}
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Message)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
