// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// HeartbeatConfig configures a Heartbeat. Data is required; zero
// Interval means planner.PresenceInterval and nil Clock means
// clock.Real().
type HeartbeatConfig struct {
	Data     datastore.DataService
	Clock    clock.Clock
	Interval time.Duration
	Logger   *slog.Logger
}

// Heartbeat keeps the caller's presence row fresh while running.
type Heartbeat struct {
	data     datastore.DataService
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeat returns a stopped heartbeat.
func NewHeartbeat(cfg HeartbeatConfig) *Heartbeat {
	heartbeat := &Heartbeat{
		data:     cfg.Data,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
	if heartbeat.clock == nil {
		heartbeat.clock = clock.Real()
	}
	if heartbeat.interval <= 0 {
		heartbeat.interval = planner.PresenceInterval
	}
	if heartbeat.logger == nil {
		heartbeat.logger = slog.New(slog.DiscardHandler)
	}
	return heartbeat
}

// Beat writes one presence row stamped with the clock's current time.
func (h *Heartbeat) Beat(ctx context.Context) error {
	_, err := h.data.Upsert(ctx, datastore.TablePresence, planner.Presence{
		LastSeen: clock.Timestamp(h.clock.Now()),
	}, "user_id")
	return err
}

// Start writes the first beat synchronously and then beats every
// interval until Stop or ctx is cancelled. Starting a running
// heartbeat is a no-op. A failed first beat leaves it stopped.
func (h *Heartbeat) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil
	}
	if _, signedIn := h.data.Caller(); !signedIn {
		return &datastore.Error{Code: datastore.CodeAuthRequired, Table: datastore.TablePresence, Message: "heartbeat requires a session"}
	}
	if err := h.Beat(ctx); err != nil {
		return err
	}

	// Register the ticker before returning so a fake clock advanced
	// right after Start observes it.
	ticker := h.clock.NewTicker(h.interval)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	done := make(chan struct{})
	h.cancel = func() {
		stop()
		cancel()
	}
	h.done = done

	go func() {
		defer close(done)
		defer h.release(done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := h.Beat(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					h.logger.Warn("presence heartbeat failed", "error", err)
				}
			}
		}
	}()
	h.logger.Debug("presence heartbeat started", "interval", h.interval)
	return nil
}

// release clears the running state when the loop exits on its own
// because the Start context ended.
func (h *Heartbeat) release(done chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done == done {
		h.cancel, h.done = nil, nil
	}
}

// Running reports whether the heartbeat loop is active.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

// Stop ends the loop and waits for it to exit. Stopping a stopped
// heartbeat is a no-op.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	h.logger.Debug("presence heartbeat stopped")
}
