package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/publisher.go -package=mocks brickshare/pkg/platform/events Publisher

// Publisher accepts committed operation events. Implementations must not call
// back into the engines: emission happens strictly after an operation's state
// changes are finalized.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists events for external indexing.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Recorder is an in-memory Publisher and Store. It backs unit tests and the
// default wiring when no broker is configured.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ctx context.Context, event Event) error {
	return r.Append(ctx, event)
}

func (r *Recorder) Append(_ context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event{}, r.events...)
}

// ByName returns recorded events matching name, in emission order.
func (r *Recorder) ByName(name Name) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Last returns a copy of the most recently recorded event, or nil when
// nothing has been recorded.
func (r *Recorder) Last() *Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.events) == 0 {
		return nil
	}
	last := r.events[len(r.events)-1]
	return &last
}
