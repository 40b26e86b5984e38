package fs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/tally/pkg/core"
)

// Watch starts a watcher bound to ctx and returns its events. The channel is
// closed once ctx is done and the watcher has stopped. An empty pattern
// matches the data file only.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	events := make(chan core.Event)
	w := newWatchWorker(r, pattern, events)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := w.Stop(stopCtx)
		close(events)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		if r.config.ErrorHandler != nil {
			r.config.ErrorHandler(fmt.Errorf("stop watcher: %w", err))
			return
		}
		r.logger.Error("stop watcher", "error", err)
	}))

	return events, nil
}

var _ core.Watchable = (*Repository)(nil)

// debouncer coalesces bursts of events for the same file into one delivery.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	event core.Event
	timer *time.Timer
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{
		interval: interval,
		pending:  make(map[string]*pendingEvent),
	}
}

// add schedules fn for e, replacing an event for the same ID that has not
// fired yet. A CREATE is not downgraded to MODIFY.
func (d *debouncer) add(e core.Event, fn func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p, ok := d.pending[e.ID]; ok {
		if p.timer.Stop() {
			if p.event.Type == core.EventCreate && e.Type == core.EventModify {
				e.Type = core.EventCreate
			}
			p.event = e
			p.timer.Reset(d.interval)
			return
		}
		// Already firing; schedule a fresh delivery.
	}

	p := &pendingEvent{event: e}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.interval, func() {
		defer d.wg.Done()
		d.mu.Lock()
		event := p.event
		if d.pending[event.ID] == p {
			delete(d.pending, event.ID)
		}
		d.mu.Unlock()
		fn(event)
	})
	d.pending[e.ID] = p
}

// stopAndWait drops pending events and waits up to timeout for callbacks
// already running.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for id, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, id)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
