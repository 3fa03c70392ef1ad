package invalidation

import (
	"sync"
	"time"

	"promptliano-client/internal/domain"
)

// DefaultHistorySize bounds the diagnostic event history.
const DefaultHistorySize = 100

// Event records one engine invocation for diagnostics. Events are ephemeral:
// the engine retains only the most recent DefaultHistorySize of them.
type Event struct {
	Entity             domain.EntityType `json:"entity"`
	Operation          domain.Operation  `json:"operation"`
	EntityID           domain.ID         `json:"entityId,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	TriggeredRuleIDs   []string          `json:"triggeredRuleIds"`
	TargetsInvalidated int               `json:"targetsInvalidated"`
}

// History is a bounded ring buffer of invalidation events. The oldest event
// is evicted once the buffer is full.
type History struct {
	mu     sync.Mutex
	max    int
	events []Event
	start  int // index of the oldest event
	count  int
}

// NewHistory creates a history holding at most max events.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max, events: make([]Event, max)}
}

// Append records an event, evicting the oldest when the buffer is full.
func (h *History) Append(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count < h.max {
		h.events[(h.start+h.count)%h.max] = event
		h.count++
		return
	}
	h.events[h.start] = event
	h.start = (h.start + 1) % h.max
}

// Events returns the retained events, oldest first.
func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.events[(h.start+i)%h.max]
	}
	return out
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Clear drops all retained events.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start = 0
	h.count = 0
}
