package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	LaunchStarted            EventType = "launch.started"
	LaunchCompleted          EventType = "launch.completed"
	LaunchFailed             EventType = "launch.failed"
	LaunchOutput             EventType = "launch.output"
	ConsoleVisibilityChanged EventType = "console.visibility_changed"
	RadioInfo                EventType = "radio.info"
	RadioInfoError           EventType = "radio.info_error"
)

// allEvents is the subscription key for handlers registered with SubscribeAll.
const allEvents EventType = "*"

type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

type Handler func(event Event)

// Sink is the publishing side of the bus. Producers depend on this rather
// than on *EventBus.
type Sink interface {
	Publish(event Event)
}

// SyncSink is a Sink that can also block until an event has been handled
// by every subscriber.
type SyncSink interface {
	Sink
	PublishSync(event Event)
}

type delivery struct {
	event Event
	done  *sync.WaitGroup
}

// subscription owns a FIFO queue drained by a single goroutine, so each
// handler sees events in publish order and never runs concurrently with
// itself.
type subscription struct {
	id      uint64
	handler Handler

	mu     sync.Mutex
	queue  []delivery
	closed bool
	wake   chan struct{}
	stop   chan struct{}
}

func (s *subscription) push(d delivery) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if d.done != nil {
			d.done.Done()
		}
		return
	}
	s.queue = append(s.queue, d)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) next() (delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return delivery{}, false
	}
	d := s.queue[0]
	s.queue[0] = delivery{}
	s.queue = s.queue[1:]
	return d, true
}

// close drops queued deliveries and releases anyone waiting on them.
func (s *subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	close(s.stop)
	for _, d := range pending {
		if d.done != nil {
			d.done.Done()
		}
	}
}

type EventBus struct {
	handlers map[EventType][]*subscription
	nextID   uint64
	mu       sync.RWMutex
	// publishMu gives every subscriber the same global event order.
	publishMu sync.Mutex
	wg        sync.WaitGroup
	log       zerolog.Logger
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]*subscription),
		log:      zerolog.Nop(),
	}
}

// SetLogger sets the logger used to report handler panics.
func (eb *EventBus) SetLogger(log zerolog.Logger) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.log = log.With().Str("component", "events").Logger()
}

// deliver drains one subscription until it is closed.
func (eb *EventBus) deliver(s *subscription) {
	defer eb.wg.Done()

	for {
		d, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		eb.run(s.handler, d.event)
		if d.done != nil {
			d.done.Done()
		}
	}
}

func (eb *EventBus) run(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.mu.RLock()
			log := eb.log
			eb.mu.RUnlock()
			log.Error().Interface("panic", r).Str("event", string(e.Type)).Msg("event handler panic")
		}
	}()
	h(e)
}

// Subscribe registers handler for one event type. The returned function
// removes the subscription; events still queued for it are dropped.
func (eb *EventBus) Subscribe(eventType EventType, handler Handler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	s := &subscription{
		id:      eb.nextID,
		handler: handler,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	eb.handlers[eventType] = append(eb.handlers[eventType], s)

	eb.wg.Add(1)
	go eb.deliver(s)

	id := s.id
	return func() { eb.unsubscribe(eventType, id) }
}

// SubscribeAll registers handler for every event type.
func (eb *EventBus) SubscribeAll(handler Handler) func() {
	return eb.Subscribe(allEvents, handler)
}

func (eb *EventBus) unsubscribe(eventType EventType, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			kept := make([]*subscription, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			eb.handlers[eventType] = append(kept, subs[i+1:]...)
			s.close()
			return
		}
	}
}

// Publish queues event for every matching subscriber and returns without
// waiting for the handlers.
func (eb *EventBus) Publish(event Event) {
	eb.publish(event, nil)
}

// PublishSync queues event like Publish and blocks until every subscriber
// has handled it. Calling it from inside a handler deadlocks.
func (eb *EventBus) PublishSync(event Event) {
	var done sync.WaitGroup
	eb.publish(event, &done)
	done.Wait()
}

func (eb *EventBus) publish(event Event, done *sync.WaitGroup) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	eb.publishMu.Lock()
	defer eb.publishMu.Unlock()

	eb.mu.RLock()
	subs := make([]*subscription, 0, len(eb.handlers[event.Type])+len(eb.handlers[allEvents]))
	subs = append(subs, eb.handlers[event.Type]...)
	subs = append(subs, eb.handlers[allEvents]...)
	eb.mu.RUnlock()

	if done != nil {
		done.Add(len(subs))
	}
	for _, s := range subs {
		s.push(delivery{event: event, done: done})
	}
}

// Shutdown drops every subscription and waits for in-flight handlers to
// return.
func (eb *EventBus) Shutdown() {
	eb.mu.Lock()
	var subs []*subscription
	for t, list := range eb.handlers {
		subs = append(subs, list...)
		delete(eb.handlers, t)
	}
	eb.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	eb.wg.Wait()
}
