package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Broker fans events out to subscriber channels. Publish never blocks: a
// subscriber that cannot keep up has events dropped and counted.
type Broker struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	dropped atomic.Int64
	log     zerolog.Logger
}

// NewBroker creates a broker that logs dropped events through log.
func NewBroker(log zerolog.Logger) *Broker {
	return &Broker{
		subs: make(map[chan Event]struct{}),
		log:  log,
	}
}

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Broker) Subscribe(buf int) chan Event {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan Event, buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers ev to every subscriber, dropping on full buffers.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			count := b.dropped.Add(1)
			if count == 1 || count%100 == 0 {
				b.log.Warn().
					Str("type", string(ev.Type)).
					Str("extension_id", ev.ExtensionID).
					Int64("total_dropped", count).
					Msg("dropped event for slow subscriber")
			}
		}
	}
}

// DroppedCount returns the total number of events dropped so far.
func (b *Broker) DroppedCount() int64 {
	return b.dropped.Load()
}
