package client

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/banshee-data/exploration/internal/link"
	"github.com/banshee-data/exploration/internal/radar"
)

// EventKind tags the messages a Runner broadcasts.
type EventKind int

const (
	// EventFrame carries one streamed frame.
	EventFrame EventKind = iota
	// EventError carries a stream error.
	EventError
	// EventState reports a state transition after a task ran.
	EventState
)

// Event is one tagged message on a subscriber channel.
type Event struct {
	Kind    EventKind
	Results []map[int]radar.Result
	Err     error
	State   State
}

// Runner owns a Client on a single goroutine and exposes it through
// message passing: tasks in, events out. This is the sanctioned way to
// use the single-owner Client from concurrent code (a UI, the monitor):
// the Client itself is never shared across goroutines.
type Runner struct {
	client *Client
	tasks  chan task

	subscribers  map[string]chan Event
	subscriberMu sync.Mutex
	closing      bool
}

type task struct {
	fn   func(*Client) error
	done chan error
}

// NewRunner wraps the client. The caller must not touch the client
// directly once Run has started.
func NewRunner(c *Client) *Runner {
	return &Runner{
		client:      c,
		tasks:       make(chan task),
		subscribers: make(map[string]chan Event),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a channel receiving the runner's events. The
// returned id identifies the channel for Unsubscribe. Slow subscribers
// miss events rather than stalling the stream.
func (r *Runner) Subscribe() (string, chan Event) {
	id := randomID()
	ch := make(chan Event, 16)
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	if r.closing {
		close(ch)
		return id, ch
	}
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (r *Runner) Unsubscribe(id string) {
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

func (r *Runner) broadcast(ev Event) {
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber is full; skip rather than stall the stream.
		}
	}
}

// Do runs fn on the runner's goroutine and waits for its result. The
// context bounds only the wait for a free slot between frames; fn
// itself is not interrupted.
func (r *Runner) Do(ctx context.Context, fn func(*Client) error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case r.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the client until the context is cancelled. While the client
// is streaming it pulls frames and broadcasts them, checking for tasks
// and cancellation between frames; otherwise it blocks on tasks.
func (r *Runner) Run(ctx context.Context) error {
	defer r.closeSubscribers()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-r.tasks:
			r.runTask(t)
		default:
			if r.client.State() != StateStreaming {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t := <-r.tasks:
					r.runTask(t)
				}
				continue
			}

			results, err := r.client.GetNext()
			switch {
			case err == nil:
				r.broadcast(Event{Kind: EventFrame, Results: results})
			case errors.Is(err, link.ErrTimeout):
				// Quiet stream; loop to stay responsive to tasks.
			default:
				r.broadcast(Event{Kind: EventError, Err: err})
				var recErr *RecordingError
				if errors.As(err, &recErr) && results != nil {
					// Frame survived, only the recording failed.
					r.broadcast(Event{Kind: EventFrame, Results: results})
				}
			}
		}
	}
}

func (r *Runner) runTask(t task) {
	err := t.fn(r.client)
	t.done <- err
	r.broadcast(Event{Kind: EventState, State: r.client.State(), Err: err})
}

func (r *Runner) closeSubscribers() {
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	r.closing = true
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
}
