package chat

import (
	"sync"
	"time"
)

// TypingIdle is how long after the last keystroke the stop event goes out.
const TypingIdle = 1200 * time.Millisecond

// TypingEmitter coalesces keystrokes into at most one start/stop pair per
// burst: the first keystroke emits typing=true and arms an idle timer, later
// keystrokes only push the deadline out, and expiry emits typing=false.
// Events are fire-and-forget; a lost stop leaves the peer's indicator stuck
// until the next real event, which is accepted.
type TypingEmitter struct {
	send func(isTyping bool)
	idle time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64 // identifies the live timer; stale expiries are ignored
}

// NewTypingEmitter wires the emitter to a send function, typically
// session.Send of an OutboundTyping frame.
func NewTypingEmitter(send func(isTyping bool)) *TypingEmitter {
	return &TypingEmitter{send: send, idle: TypingIdle}
}

// Keystroke reports one keypress.
func (e *TypingEmitter) Keystroke() {
	e.mu.Lock()
	fresh := e.timer == nil
	if e.timer != nil {
		// Stop may miss a timer that already fired; the seq bump makes the
		// in-flight expiry a no-op either way.
		e.timer.Stop()
	}
	e.seq++
	seq := e.seq
	e.timer = time.AfterFunc(e.idle, func() { e.expire(seq) })
	e.mu.Unlock()
	if fresh {
		e.send(true)
	}
}

func (e *TypingEmitter) expire(seq uint64) {
	e.mu.Lock()
	if seq != e.seq {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()
	e.send(false)
}

// Stop cancels the pending idle timer, emitting the stop event if a burst
// was active. Used when a message is sent or the conversation closes.
func (e *TypingEmitter) Stop() {
	e.mu.Lock()
	t := e.timer
	e.timer = nil
	if t != nil && !t.Stop() {
		// Already fired: the in-flight expiry delivers the stop event.
		e.mu.Unlock()
		return
	}
	e.seq++
	e.mu.Unlock()
	if t != nil {
		e.send(false)
	}
}
