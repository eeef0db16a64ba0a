package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/campuschat/campuschat/internal/provider"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxFrameSize = 1 << 20
)

// snapshotFrame is one full-window push from the feed endpoint.
type snapshotFrame struct {
	Window []document `json:"window"`
}

type appendResponse struct {
	ID string `json:"id"`
}

// Subscribe dials the feed websocket and delivers every full-window frame to
// fn until the returned cancel runs. Cancel is idempotent and waits for the
// read loop to exit, so no callback is invoked after it returns.
func (c *Client) Subscribe(ctx context.Context, q provider.Query, fn provider.SnapshotFunc) (provider.UnsubscribeFunc, error) {
	wsURL, err := c.feedURL(q)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token := c.bearer(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	go c.readLoop(conn, fn, done)
	go c.pingLoop(conn, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			conn.Close()
			<-done
		})
	}, nil
}

// Append stores the document through the HTTP API; the committed copy comes
// back through the websocket like everyone else's messages.
func (c *Client) Append(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var resp appendResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/docs/"+url.PathEscape(collection), fields, &resp)
	if err != nil {
		return "", fmt.Errorf("append document: %w", err)
	}

	return resp.ID, nil
}

func (c *Client) readLoop(conn *websocket.Conn, fn provider.SnapshotFunc, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("feed read: %v", err)
			}
			return
		}

		var frame snapshotFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Println("malformed feed frame:", err)
			continue
		}

		window := make([]provider.Document, 0, len(frame.Window))
		for _, doc := range frame.Window {
			window = append(window, provider.Document{ID: doc.ID, Fields: doc.Fields})
		}
		fn(window)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		case <-done:
			return
		}
	}
}

func (c *Client) feedURL(q provider.Query) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = "/api/feed"
	values := u.Query()
	values.Set("collection", q.Collection)
	values.Set("limit", strconv.Itoa(q.Limit))
	u.RawQuery = values.Encode()

	return u.String(), nil
}
