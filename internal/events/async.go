package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Async.Publish when the buffer has no room.
var ErrQueueFull = errors.New("event queue full")

// ErrPublisherClosed is returned by Async.Publish after Close.
var ErrPublisherClosed = errors.New("event publisher closed")

// Async hands events to a single background worker so callers never wait
// on the broker. Events are delivered in the order Publish accepted them.
type Async struct {
	next    Publisher
	log     logrus.FieldLogger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan TransactionRecorded
	done   chan struct{}
}

// NewAsync starts the worker. buffer bounds how many events may wait for
// delivery; timeout bounds each delivery to next.
func NewAsync(next Publisher, buffer int, timeout time.Duration, log logrus.FieldLogger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:    next,
		log:     log,
		timeout: timeout,
		queue:   make(chan TransactionRecorded, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues event without blocking.
func (a *Async) Publish(_ context.Context, event TransactionRecorded) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queued ones are delivered
// or ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, event); err != nil {
			a.log.WithFields(logrus.Fields{
				"transaction_id": event.TransactionID,
				"user_id":        event.UserID,
				"sequence":       event.Sequence,
			}).WithError(err).Error("failed to publish transaction event")
		}
		cancel()
	}
}
