// Package bus carries batch lifecycle events from the executor to observers
// such as metrics and the journal.
package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"tgbatch/internal/domain"
)

// Well-known event types.
const (
	EventBatchStarted  = "batch.started"
	EventItemState     = "item.state"
	EventBatchFinished = "batch.finished"
)

// Event is a lifecycle notification. Fields not relevant to Type are zero.
type Event struct {
	Type      string
	RunID     string
	Operation domain.OperationKind
	Binary    bool
	Items     int // batch.started: number of input items

	Index    int
	State    domain.ItemState
	Outcomes []domain.Outcome // terminal item states: records appended for the item
	Err      error
	Duration time.Duration // time spent dispatching; zero if never dispatched

	Timestamp time.Time
}

// EventHandler is a callback for events.
type EventHandler func(Event)

type namedHandler struct {
	id      string
	handler EventHandler
}

// EventBus is a synchronous topic-based publish/subscribe bus. Handlers run
// in registration order on the emitting goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	seq      int
	logger   *slog.Logger
}

// NewEventBus returns an empty bus that logs handler panics to logger.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers: make(map[string][]namedHandler),
		logger:   logger,
	}
}

// On registers a handler for an event type; "*" receives every event.
// It returns an id for Off.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.seq++
	id := eventType + "-" + strconv.Itoa(eb.seq)
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{id: id, handler: handler})
	return id
}

// Off removes a handler by id.
func (eb *EventBus) Off(eventType, id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if h.id == id {
			eb.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers event to matching handlers. A panicking handler is logged
// and does not stop delivery to the others.
func (eb *EventBus) Emit(event Event) {
	if eb == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	handlers := make([]namedHandler, 0, len(eb.handlers[event.Type])+len(eb.handlers["*"]))
	handlers = append(handlers, eb.handlers[event.Type]...)
	handlers = append(handlers, eb.handlers["*"]...)
	eb.mu.RUnlock()

	for _, h := range handlers {
		eb.call(h, event)
	}
}

func (eb *EventBus) call(h namedHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", h.id, "panic", r)
		}
	}()
	h.handler(event)
}
