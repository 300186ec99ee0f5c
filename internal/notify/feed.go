package notify

import (
	"sync"

	"go.uber.org/zap"

	"flipradar/internal/engine"
)

const defaultBuffer = 64

// Feed fans committed engine events out to subscribers (websocket clients,
// the alert dispatcher). Publish never blocks: a subscriber that cannot keep
// up loses events and the loss is counted, because a stalled client must not
// stall the engine.
type Feed struct {
	logger *zap.Logger
	buf    int

	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan engine.Event
	dropped uint64
}

func NewFeed(buf int, logger *zap.Logger) *Feed {
	if buf <= 0 {
		buf = defaultBuffer
	}
	return &Feed{
		logger: logger,
		buf:    buf,
		subs:   make(map[uint64]chan engine.Event),
	}
}

// Subscribe registers a new consumer. The returned cancel func must be called
// exactly once; it closes the channel.
func (f *Feed) Subscribe() (<-chan engine.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan engine.Event, f.buf)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if existing, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping on full buffers.
func (f *Feed) Publish(ev engine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.dropped++
			if f.logger != nil {
				f.logger.Warn("feed subscriber lagging, event dropped",
					zap.Uint64("subscriber", id),
					zap.Uint64("dropped_total", f.dropped))
			}
		}
	}
}

// Dropped returns how many events have been discarded across all subscribers.
func (f *Feed) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

var _ engine.Publisher = (*Feed)(nil)
