package exploration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// EventType names a campaign event.
type EventType string

const (
	EventTrialDispatched EventType = "trial_dispatched"
	EventTrialCompleted  EventType = "trial_completed"
	EventTrialFailed     EventType = "trial_failed"
	EventTrialCancelled  EventType = "trial_cancelled"
	EventStateChanged    EventType = "state_changed"
)

const defaultSubscriberBuffer = 128

// Event is published on the Bus for every trial transition and state change.
type Event struct {
	Type       EventType     `json:"type"`
	Time       time.Time     `json:"time"`
	CampaignID string        `json:"campaign_id"`
	Trial      *models.Trial `json:"trial,omitempty"`
	State      State         `json:"state,omitempty"`
	StopReason StopReason    `json:"stop_reason,omitempty"`
}

// Bus fans events out to subscribers. Publish never blocks: an event that
// does not fit in a subscriber's buffer is dropped and counted.
type Bus struct {
	mu          sync.Mutex
	subscribers map[uint64]chan Event
	nextID      uint64
	buffer      int
	closed      bool

	published atomic.Int64
	dropped   atomic.Int64
}

// NewBus creates a bus whose subscribers buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Bus{subscribers: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a function that unsubscribes and
// closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber with room for it.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.published.Add(1)
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Published returns how many events were published.
func (b *Bus) Published() int64 { return b.published.Load() }

// Dropped returns how many deliveries were dropped on full buffers.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }
