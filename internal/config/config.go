package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultRoomName       = "global-chat"
	DefaultRequestTimeout = 15 * time.Second
)

type Config struct {
	// BaseURL selects the backend endpoint, e.g. "https://chat.example.edu".
	BaseURL        string
	RoomName       string
	RequestTimeout time.Duration
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL has no host")
	}

	return nil
}

func NewConfig(baseURL, roomName string) (*Config, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if err := validateBaseURL(baseURL); err != nil {
		return nil, err
	}

	if roomName == "" {
		roomName = DefaultRoomName
	}

	return &Config{
		BaseURL:        baseURL,
		RoomName:       roomName,
		RequestTimeout: DefaultRequestTimeout,
	}, nil
}
