package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "me", zerolog.Nop()), srv
}

func TestMessagesSortsAscendingAndReportsHasMore(t *testing.T) {
	base := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/rooms/r1/messages", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "me", r.Header.Get("X-User-ID"))
		// Newest-first, the order that once corrupted the view.
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m2", "sender_id": "peer", "content": "two", "created_at": base.Add(time.Minute)},
			{"id": "m1", "sender_id": "peer", "content": "one", "created_at": base},
		})
	}))
	defer srv.Close()

	msgs, hasMore, err := client.Messages(context.Background(), "r1", 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.True(t, hasMore, "a full page means more may exist")
}

func TestMessagesPartialPageMeansNoMore(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m1", "sender_id": "peer", "content": "one", "created_at": time.Now()},
		})
	}))
	defer srv.Close()

	_, hasMore, err := client.Messages(context.Background(), "r1", 20, time.Time{})
	require.NoError(t, err)
	assert.False(t, hasMore)
}

func TestMessagesForwardsBeforeCursor(t *testing.T) {
	before := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("before"))
		require.NoError(t, err)
		assert.True(t, got.Equal(before))
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	msgs, hasMore, err := client.Messages(context.Background(), "r1", 20, before)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, hasMore)
}

func TestMessagesErrorPropagates(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	msgs, hasMore, err := client.Messages(context.Background(), "r1", 20, time.Time{})
	require.Error(t, err)
	assert.Nil(t, msgs)
	assert.False(t, hasMore)
}

func TestMarkSeen(t *testing.T) {
	var gotMethod, gotPath string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"message": "Messages marked as seen"})
	}))
	defer srv.Close()

	require.NoError(t, client.MarkSeen(context.Background(), "r1"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/chat/rooms/r1/seen", gotPath)
}

func TestMarkSeenFailure(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	require.Error(t, client.MarkSeen(context.Background(), "r1"))
}

func TestWSToken(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/token", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	}))
	defer srv.Close()

	token, err := client.WSToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestUserLookup(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/peer-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]string{"name": "Ada", "profile_image": "https://img/a.png"},
		})
	}))
	defer srv.Close()

	u, err := client.User(context.Background(), "peer-1")
	require.NoError(t, err)
	assert.Equal(t, "peer-1", u.ID, "id falls back to the requested one")
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "https://img/a.png", u.Avatar)
}
