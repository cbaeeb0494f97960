// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/teamflow/lib/datastore"
)

// Handlers receive a watched feed's traffic on the watcher goroutine,
// one call at a time. Resync is called when the feed dropped events;
// the handler should re-fetch its whole collection.
type Handlers struct {
	Event  func(event datastore.Event)
	Resync func()
}

// Watcher owns one feed and the goroutine draining it.
type Watcher struct {
	feed   *datastore.Feed
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Watch subscribes and starts dispatching. The feed is released when
// Stop is called or ctx ends, on every path.
func Watch(ctx context.Context, service datastore.DataService, subscription datastore.Subscription, handlers Handlers, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	feed, err := service.Subscribe(ctx, subscription)
	if err != nil {
		return nil, err
	}

	watcher := &Watcher{
		feed:   feed,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go watcher.run(ctx, handlers)
	return watcher, nil
}

func (w *Watcher) run(ctx context.Context, handlers Handlers) {
	defer close(w.done)
	defer w.feed.Release()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-w.feed.Done():
			return
		case <-w.feed.Overflow():
			if w.feed.Resync() {
				w.logger.Warn("change feed overflowed, resyncing")
				if handlers.Resync != nil {
					handlers.Resync()
				}
			}
		case event := <-w.feed.Events():
			if handlers.Event != nil {
				handlers.Event(event)
			}
		}
	}
}

// Stop releases the feed and waits for the dispatch goroutine to exit.
// Safe to call more than once, but never from inside a handler.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

// Done is closed once the watcher has exited and released its feed.
func (w *Watcher) Done() <-chan struct{} { return w.done }
