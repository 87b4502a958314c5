// Package api is the REST side of the chat backend: history pages, seen
// acknowledgements, websocket tokens and peer lookups. The persistent
// connection itself lives in internal/chat.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushmehta03/devlink-chat/internal/chat"
)

// Client is a devLink API client.
type Client struct {
	BaseURL    string
	UserID     string // sent as X-User-ID; session issuance is not this client's job
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL, userID string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Log:        log,
	}
}

// wireMessage mirrors the REST representation of a message.
type wireMessage struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	SeenAt    *time.Time `json:"seen_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Messages fetches one history page: the newest limit messages when before
// is zero, otherwise the limit messages preceding it. The result is sorted
// ascending by created_at regardless of server order; a reversed page once
// corrupted display order and must not again. hasMore uses the page-full
// heuristic. Errors propagate; retry policy belongs to the caller.
func (c *Client) Messages(ctx context.Context, roomID string, limit int, before time.Time) ([]chat.Message, bool, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if !before.IsZero() {
		q.Set("before", before.UTC().Format(time.RFC3339Nano))
	}
	var raw []wireMessage
	if err := c.getJSON(ctx, "/chat/rooms/"+roomID+"/messages?"+q.Encode(), &raw); err != nil {
		return nil, false, err
	}
	msgs := make([]chat.Message, 0, len(raw))
	for _, w := range raw {
		msgs = append(msgs, chat.Message{
			ID:        w.ID,
			RoomID:    w.RoomID,
			SenderID:  w.SenderID,
			Content:   w.Content,
			CreatedAt: w.CreatedAt,
			SeenAt:    w.SeenAt,
			State:     chat.StateConfirmed,
		})
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, len(msgs) == limit, nil
}

// MarkSeen acknowledges every unseen peer message in the room as seen up to
// now. Safe to call repeatedly.
func (c *Client) MarkSeen(ctx context.Context, roomID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/rooms/"+roomID+"/seen", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: mark seen: status %d", resp.StatusCode)
	}
	return nil
}

// WSToken fetches the short-lived credential the transport attaches to its
// connection query string.
func (c *Client) WSToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.getJSON(ctx, "/ws/token", &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// User is peer display metadata.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"profile_image,omitempty"`
}

// User looks up display metadata for a peer.
func (c *Client) User(ctx context.Context, id string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.getJSON(ctx, "/users/"+id, &out); err != nil {
		return User{}, err
	}
	if out.User.ID == "" {
		out.User.ID = id
	}
	return out.User, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("api: GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.UserID != "" {
		req.Header.Set("X-User-ID", c.UserID)
	}
}
