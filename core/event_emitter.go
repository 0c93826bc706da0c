package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-agent/core/events"
	"github.com/rs/zerolog/log"
)

const eventBufferSize = 64

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts StartOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserTranscript:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent)
			}
		case events.AgentStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(typedEvent)
			}
		case events.MetricsCollected:
			if opts.onMetrics != nil {
				opts.onMetrics(typedEvent)
			}
		}
	}
}

// eventDispatcher delivers events one at a time, in the order they were
// queued, on a single goroutine.
type eventDispatcher struct {
	mu     sync.RWMutex
	queue  chan events.Event
	closed bool

	emit eventEmitter
	done chan struct{}
}

func newEventDispatcher() *eventDispatcher {
	return &eventDispatcher{
		queue: make(chan events.Event, eventBufferSize),
		emit:  noopEventEmitter,
		done:  make(chan struct{}),
	}
}

func (d *eventDispatcher) start(emit eventEmitter) {
	if emit != nil {
		d.emit = emit
	}
	go d.run()
}

func (d *eventDispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *eventDispatcher) deliver(event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(context.Background(), "event callback panicked",
				"event", string(event.Kind()), "panic", fmt.Sprint(r))
			log.Error().Str("event", string(event.Kind())).Str("panic", fmt.Sprint(r)).Msg("event callback panicked")
		}
	}()
	d.emit(event)
}

// enqueue drops events once the dispatcher has been closed.
func (d *eventDispatcher) enqueue(event events.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.queue <- event
}

// close stops accepting events. When the dispatcher was started it waits
// for the queued events to be delivered.
func (d *eventDispatcher) close(started bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if started {
		<-d.done
	}
}
