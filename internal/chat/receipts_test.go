package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcker struct {
	calls int
	err   error
}

func (a *fakeAcker) MarkSeen(context.Context, string) error {
	a.calls++
	return a.err
}

func TestReconcileAcksUnseenPeerMessagesOnce(t *testing.T) {
	s := NewStore("r1", "me")
	acker := &fakeAcker{}
	c := NewCoordinator(s, acker, testLogger())

	s.IngestStreamed(confirmed("m1", "peer", "hi", base))

	c.Reconcile(context.Background())
	require.Equal(t, 1, acker.calls)
	assert.Empty(t, s.UnseenFromPeer(), "successful ack stamps locally")

	// No intervening mutation: at most one acknowledgement.
	c.Reconcile(context.Background())
	c.Reconcile(context.Background())
	assert.Equal(t, 1, acker.calls)
}

func TestReconcileStampsWithOwnClock(t *testing.T) {
	s := NewStore("r1", "me")
	c := NewCoordinator(s, &fakeAcker{}, testLogger())
	at := base.Add(time.Hour)
	c.now = func() time.Time { return at }

	s.IngestStreamed(confirmed("m1", "peer", "hi", base))
	c.Reconcile(context.Background())

	got := s.Messages()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].SeenAt)
	assert.True(t, got[0].SeenAt.Equal(at))
}

func TestReconcileSkipsWhenNothingUnseen(t *testing.T) {
	s := NewStore("r1", "me")
	acker := &fakeAcker{}
	c := NewCoordinator(s, acker, testLogger())

	c.Reconcile(context.Background())
	assert.Zero(t, acker.calls, "empty store needs no ack")

	s.InsertOptimistic("hi") // own message, nothing to acknowledge
	c.Reconcile(context.Background())
	assert.Zero(t, acker.calls)
}

func TestReconcileAcksAgainAfterNewPeerMessage(t *testing.T) {
	s := NewStore("r1", "me")
	acker := &fakeAcker{}
	c := NewCoordinator(s, acker, testLogger())

	s.IngestStreamed(confirmed("m1", "peer", "one", base))
	c.Reconcile(context.Background())
	require.Equal(t, 1, acker.calls)

	s.IngestStreamed(confirmed("m2", "peer", "two", base.Add(time.Minute)))
	c.Reconcile(context.Background())
	assert.Equal(t, 2, acker.calls)
}

func TestReconcileFailureRetriesOnNextMutation(t *testing.T) {
	s := NewStore("r1", "me")
	acker := &fakeAcker{err: errors.New("backend down")}
	c := NewCoordinator(s, acker, testLogger())

	s.IngestStreamed(confirmed("m1", "peer", "hi", base))
	c.Reconcile(context.Background())
	require.Equal(t, 1, acker.calls)
	assert.NotEmpty(t, s.UnseenFromPeer(), "failed ack must not stamp locally")

	// Dropped silently: no retry until something changes.
	c.Reconcile(context.Background())
	assert.Equal(t, 1, acker.calls)

	acker.err = nil
	s.IngestStreamed(confirmed("m2", "peer", "again", base.Add(time.Minute)))
	c.Reconcile(context.Background())
	assert.Equal(t, 2, acker.calls)
	assert.Empty(t, s.UnseenFromPeer())
}
