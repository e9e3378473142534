// Package broadcast fans server events out to every connected session. Every
// envelope reaches every subscriber; each receiver decides whether the
// envelope is addressed to it. Subscribers that stop draining their channel
// are pruned.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/wordduel/wire"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Envelope is one message addressed to a single user. The bus still delivers
// it to every subscriber; receivers drop envelopes not addressed to them.
type Envelope struct {
	RecipientID uint64
	Message     wire.Message
}

// Bus is the fan-out hub. Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Envelope
	nextID atomic.Uint64
	buffer int
}

// New creates a Bus whose subscriber channels hold up to buffer envelopes.
// A buffer of zero or less falls back to DefaultBuffer.
//
// Returns:
//   - The new Bus
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Bus{
		subs:   make(map[uint64]chan Envelope),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// channel is closed when the subscriber is unsubscribed or pruned.
//
// Returns:
//   - The subscription id, used with Unsubscribe
//   - The channel every published envelope is delivered on
func (b *Bus) Subscribe() (uint64, <-chan Envelope) {
	id := b.nextID.Add(1)
	ch := make(chan Envelope, b.buffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown ids are
// ignored, so it is safe to call after the subscriber was pruned.
//
// Parameters:
//   - id: The subscription id returned by Subscribe
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the envelope to every subscriber. A subscriber whose
// buffer is full is treated as dead: it is removed and its channel closed.
//
// Parameters:
//   - env: The envelope to fan out
//
// Returns:
//   - The number of subscribers the envelope was delivered to
//   - The number of subscribers pruned during this publish
func (b *Bus) Publish(env Envelope) (delivered int, pruned int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- env:
			delivered++
		default:
			delete(b.subs, id)
			close(ch)
			pruned++
		}
	}

	return delivered, pruned
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
