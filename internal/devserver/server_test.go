package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, app *fiber.App, req *http.Request, out any) int {
	t.Helper()
	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHistoryPagination(t *testing.T) {
	s := New(zerolog.Nop())
	base := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.SeedMessage("r1", "alice", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	app := s.App()

	var page []storedMessage
	req := httptest.NewRequest(http.MethodGet, "/chat/rooms/r1/messages?limit=2", nil)
	require.Equal(t, http.StatusOK, doJSON(t, app, req, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "msg-3", page[0].Content, "newest two, ascending")
	assert.Equal(t, "msg-4", page[1].Content)

	// Older page via the cursor.
	cursor := page[0].CreatedAt.Format(time.RFC3339Nano)
	var older []storedMessage
	req = httptest.NewRequest(http.MethodGet, "/chat/rooms/r1/messages?limit=2&before="+cursor, nil)
	require.Equal(t, http.StatusOK, doJSON(t, app, req, &older))
	require.Len(t, older, 2)
	assert.Equal(t, "msg-1", older[0].Content)
	assert.Equal(t, "msg-2", older[1].Content)

	req = httptest.NewRequest(http.MethodGet, "/chat/rooms/r1/messages?limit=2&before=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, app, req, nil))
}

func TestHistoryEmptyRoom(t *testing.T) {
	s := New(zerolog.Nop())
	app := s.App()

	var page []storedMessage
	req := httptest.NewRequest(http.MethodGet, "/chat/rooms/nowhere/messages", nil)
	require.Equal(t, http.StatusOK, doJSON(t, app, req, &page))
	assert.Empty(t, page)
}

func TestSeenStampsOnlyPeerMessages(t *testing.T) {
	s := New(zerolog.Nop())
	base := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	s.SeedMessage("r1", "alice", "mine", base)
	s.SeedMessage("r1", "bob", "theirs", base.Add(time.Minute))
	app := s.App()

	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/r1/seen", nil)
	req.Header.Set("X-User-ID", "alice")
	require.Equal(t, http.StatusOK, doJSON(t, app, req, nil))

	var page []storedMessage
	get := httptest.NewRequest(http.MethodGet, "/chat/rooms/r1/messages", nil)
	require.Equal(t, http.StatusOK, doJSON(t, app, get, &page))
	require.Len(t, page, 2)
	assert.Nil(t, page[0].SeenAt, "own message stays unstamped")
	assert.NotNil(t, page[1].SeenAt)
}

func TestSeenRequiresCaller(t *testing.T) {
	s := New(zerolog.Nop())
	app := s.App()

	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/r1/seen", nil)
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, app, req, nil))
}

func TestSeenBroadcastsAck(t *testing.T) {
	s := New(zerolog.Nop())
	s.SeedMessage("r1", "bob", "theirs", time.Now())
	app := s.App()

	cl, conn := newHubClient("bob")
	s.hub.join("r1", cl)
	defer close(cl.send)

	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/r1/seen", nil)
	req.Header.Set("X-User-ID", "alice")
	require.Equal(t, http.StatusOK, doJSON(t, app, req, nil))

	frames := conn.waitFrames(t, 1)
	var frame struct {
		Type   string    `json:"type"`
		UserID string    `json:"user_id"`
		SeenAt time.Time `json:"seen_at"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &frame))
	assert.Equal(t, "seen", frame.Type)
	assert.Equal(t, "alice", frame.UserID)
	assert.False(t, frame.SeenAt.IsZero())

	// Nothing left unseen: a second call must not re-broadcast.
	req = httptest.NewRequest(http.MethodPost, "/chat/rooms/r1/seen", nil)
	req.Header.Set("X-User-ID", "alice")
	require.Equal(t, http.StatusOK, doJSON(t, app, req, nil))
	time.Sleep(20 * time.Millisecond)
	conn.mu.Lock()
	assert.Len(t, conn.frames, 1)
	conn.mu.Unlock()
}

func TestTokenIssuedPerCaller(t *testing.T) {
	s := New(zerolog.Nop())
	app := s.App()

	var out struct {
		Token string `json:"token"`
	}
	req := httptest.NewRequest(http.MethodGet, "/ws/token", nil)
	req.Header.Set("X-User-ID", "alice")
	require.Equal(t, http.StatusOK, doJSON(t, app, req, &out))
	require.NotEmpty(t, out.Token)

	s.mu.Lock()
	assert.Equal(t, "alice", s.tokens[out.Token])
	s.mu.Unlock()

	req = httptest.NewRequest(http.MethodGet, "/ws/token", nil)
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, app, req, nil))
}

func TestUserLookupFallsBackToShortID(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddUser("alice", "Alice", "https://img/a.png")
	app := s.App()

	var out struct {
		User struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Avatar string `json:"profile_image"`
		} `json:"user"`
	}
	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, doJSON(t, app, req, &out))
	assert.Equal(t, "Alice", out.User.Name)
	assert.Equal(t, "https://img/a.png", out.User.Avatar)

	req = httptest.NewRequest(http.MethodGet, "/users/123456789abc", nil)
	require.Equal(t, http.StatusOK, doJSON(t, app, req, &out))
	assert.Equal(t, "User 12345678", out.User.Name)
}
