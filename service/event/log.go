package event

import (
	"context"
	"log"
	"sync"

	"github.com/viant/webpilot/internal/clock"
	"github.com/viant/webpilot/service/messaging/memory"
)

// Log keeps the append-only event history of a single task and fans events
// out to push consumers.  Events can be consumed either by pulling the full
// history (Events) or by registering a push handler / queue listener.
type Log struct {
	mu        sync.RWMutex
	events    []*Event
	handler   func(*Event)
	queue     *memory.Queue[Event]
	listeners int
}

// Option customises a Log.
type Option func(l *Log)

// WithHandler registers a callback invoked synchronously for every published
// event.
func WithHandler(handler func(*Event)) Option {
	return func(l *Log) { l.handler = handler }
}

// WithQueueConfig overrides the push queue configuration.
func WithQueueConfig(config memory.Config) Option {
	return func(l *Log) { l.queue = memory.NewQueue[Event](config) }
}

// NewLog creates an event log.
func NewLog(options ...Option) *Log {
	ret := &Log{}
	for _, option := range options {
		option(ret)
	}
	if ret.queue == nil {
		ret.queue = memory.NewQueue[Event](memory.DefaultConfig())
	}
	return ret
}

// Publish appends the event to the history and forwards it to push
// consumers.  The history append never fails and emitters never block: the
// push copy is enqueued only while a listener is registered, and is dropped
// rather than waited on when the push queue is full.
func (l *Log) Publish(ctx context.Context, anEvent *Event) {
	if anEvent == nil {
		return
	}
	if anEvent.CreatedAt.IsZero() {
		anEvent.CreatedAt = clock.Now()
	}
	l.mu.Lock()
	l.events = append(l.events, anEvent)
	handler := l.handler
	listening := l.listeners > 0
	l.mu.Unlock()

	if handler != nil {
		handler(anEvent)
	}
	if listening {
		if err := l.queue.TryPublish(ctx, anEvent); err != nil && ctx.Err() == nil {
			log.Printf("event push dropped: %v", err)
		}
	}
}

// Events returns a copy of the full event history.
func (l *Log) Events() []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Listening reports whether any push consumer is registered.
func (l *Log) Listening() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listeners > 0
}

// Listen consumes pushed events until ctx is cancelled or the returned stop
// function is called, invoking handler for each.  Publishing enqueues push
// copies only while at least one listener is registered.
func (l *Log) Listen(ctx context.Context, handler func(*Event)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.listeners++
	l.mu.Unlock()
	go func() {
		defer func() {
			l.mu.Lock()
			l.listeners--
			l.mu.Unlock()
		}()
		for {
			msg, err := l.queue.Consume(ctx)
			if err != nil {
				return
			}
			if ackErr := msg.Ack(); ackErr != nil {
				continue
			}
			handler(msg.T())
		}
	}()
	return cancel
}
