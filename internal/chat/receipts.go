package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Acker issues the seen acknowledgement for a whole conversation. The call
// is idempotent server-side.
type Acker interface {
	MarkSeen(ctx context.Context, roomID string) error
}

// Coordinator watches the store for unacknowledged peer messages and issues
// one batched acknowledgement per store mutation that introduces them.
type Coordinator struct {
	store *Store
	acker Acker
	log   zerolog.Logger
	now   func() time.Time

	mu           sync.Mutex
	ackedVersion uint64
}

// NewCoordinator ties a coordinator to its store and acker.
func NewCoordinator(store *Store, acker Acker, log zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, acker: acker, log: log, now: time.Now}
}

// Reconcile runs after a store mutation. Repeated calls with no intervening
// mutation are no-ops. A failed acknowledgement is swallowed and retried on
// the next mutation, never before and never surfaced.
func (c *Coordinator) Reconcile(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.store.Version()
	if v == c.ackedVersion {
		return
	}
	c.ackedVersion = v
	unseen := c.store.UnseenFromPeer()
	if len(unseen) == 0 {
		return
	}
	if err := c.acker.MarkSeen(ctx, c.store.RoomID()); err != nil {
		c.log.Warn().Err(err).Msg("seen ack failed")
		return
	}
	// Stamp locally so the condition clears without a refetch.
	c.store.MarkSeenUpTo(unseen, c.now())
	c.ackedVersion = c.store.Version()
}
