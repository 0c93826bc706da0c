package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

// Option adjusts the base of an event at construction time.
type Option func(*Base)

// WithTimestamp overrides the time the event is recorded at. Zero times are
// ignored.
func WithTimestamp(timestamp time.Time) Option {
	return func(b *Base) {
		if !timestamp.IsZero() {
			b.timestamp = timestamp
		}
	}
}

func NewBase(kind Kind, opts ...Option) Base {
	base := Base{kind: kind, timestamp: time.Now()}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
