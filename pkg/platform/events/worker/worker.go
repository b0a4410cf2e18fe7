// Package worker decouples event emission from event delivery. Engines emit
// into a buffered channel; the worker drains it into a Store or broker sink
// so a slow sink never blocks an operation.
package worker

import (
	"context"

	"brickshare/pkg/platform/events"
)

// Worker consumes events from a channel and persists them.
type Worker struct {
	store events.Store
	inbox <-chan events.Event
}

func NewWorker(store events.Store, inbox <-chan events.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run drains the inbox until ctx is cancelled. A store failure stops the
// worker; the caller decides whether delivery is fail-open or fatal.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// ChannelPublisher bridges the Publisher interface onto a worker inbox.
type ChannelPublisher struct {
	inbox chan<- events.Event
}

func NewChannelPublisher(inbox chan<- events.Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

// Emit enqueues the event, honoring context cancellation when the inbox is
// full. State is already committed by the time Emit runs, so backpressure
// here delays observers, never the ledger.
func (p *ChannelPublisher) Emit(ctx context.Context, event events.Event) error {
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
