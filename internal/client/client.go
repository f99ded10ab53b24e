// Package client talks to the MobileRAG backend: the REST surface for chats
// and status, and the WebSocket endpoint that streams a turn.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lavandejoey/MobileRAG/internal/models"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("not found")

// StatusOnline is the status the backend reports when it is healthy.
const StatusOnline = "online"

// Client is an HTTP and WebSocket client for the backend.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// New creates a client for serverURL (e.g. http://127.0.0.1:8000).
// apiPrefix is prepended to chat routes; the status route is unprefixed.
func New(serverURL, apiPrefix string, timeout time.Duration) *Client {
	if serverURL == "" {
		serverURL = "http://127.0.0.1:8000"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if apiPrefix != "" && !strings.HasPrefix(apiPrefix, "/") {
		apiPrefix = "/" + apiPrefix
	}

	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		prefix:  strings.TrimRight(apiPrefix, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a JSON response body into result.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ListChats returns up to limit chats, most recently updated first.
func (c *Client) ListChats(ctx context.Context, limit int) ([]models.Chat, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var chats []models.Chat
	if err := c.do(ctx, http.MethodGet, c.prefix+"/chats", q, &chats); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// GetMessages returns up to limit records of a chat in persisted order.
func (c *Client) GetMessages(ctx context.Context, chatID string, limit int) ([]models.ChatRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var records []models.ChatRecord
	path := c.prefix + "/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, q, &records); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return records, nil
}

// DeleteChat deletes a chat and all of its records.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	path := c.prefix + "/chats/" + url.PathEscape(chatID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// Status returns the backend's self-reported status ("online" when healthy).
func (c *Client) Status(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return out.Status, nil
}

// StreamURL returns the WebSocket endpoint for chat turns.
func (c *Client) StreamURL() string {
	u := c.baseURL + c.prefix + "/chat/ws"
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	return u
}
