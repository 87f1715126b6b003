// Package events provides a publish/subscribe bus for operational
// observability. Events flow from the orchestration loop and the
// scheduler to subscribers (the WebSocket feed, tests). The bus is
// nil-safe: Publish on a nil *Bus is a no-op, so components do not need
// guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the orchestration loop.
	SourceAgent = "agent"
	// SourceScheduler identifies events from the task scheduler.
	SourceScheduler = "scheduler"
)

// Kind constants describe the type of event within a source.
const (
	// KindRunStart signals the beginning of an orchestration run.
	// Data: run_id, conversation_id, request_len.
	KindRunStart = "run_start"
	// KindStepStart signals a step is about to execute.
	// Data: run_id, step, total, tool.
	KindStepStart = "step_start"
	// KindStepDone signals a step finished.
	// Data: run_id, step, total, tool, ok.
	KindStepDone = "step_done"
	// KindRunComplete signals the end of an orchestration run.
	// Data: run_id, tool, ok, steps, confidence, elapsed_ms.
	KindRunComplete = "run_complete"

	// KindTaskFired signals a scheduled task has begun executing.
	// Data: task_id, task_name, tool.
	KindTaskFired = "task_fired"
	// KindTaskDone signals a scheduled task has finished.
	// Data: task_id, task_name, ok.
	KindTaskDone = "task_done"
)

// Event is a single operational event.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the publishing component.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Subscribers receive events on
// buffered channels; a slow subscriber misses events rather than
// blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// New creates an event bus ready for use.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish sends an event to all subscribers, stamping the timestamp if
// unset. Non-blocking: full subscriber channels drop the event. Safe to
// call on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full: drop rather than block.
		}
	}
}

// Subscribe returns a receive channel and a cancel function. The cancel
// function must be called to release the subscription; it closes the
// channel and is safe to call more than once.
func (b *Bus) Subscribe(bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
