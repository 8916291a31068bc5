package evaluation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ocr-eval/harness/pkg/logger"
)

type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventOutputScored  EventType = "output_scored"
	EventOutputFailed  EventType = "output_failed"
	EventItemCompleted EventType = "item_completed"
	EventRunFinished   EventType = "run_finished"
)

// Event is a progress notification for one run. Fields that do not apply to
// the event type are left zero.
type Event struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id"`
	ItemID     int       `json:"item_id,omitempty"`
	ModelName  string    `json:"model_name,omitempty"`
	WER        *float64  `json:"wer,omitempty"`
	CER        *float64  `json:"cer,omitempty"`
	Score      *int      `json:"score,omitempty"`
	ItemsDone  int       `json:"items_done"`
	ItemsTotal int       `json:"items_total"`
	Status     string    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hub fans run events out to subscribers. A subscriber that falls behind
// loses events rather than stalling the pipeline.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a function that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			logger.Debug("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("type", string(e.Type)),
			)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
