// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// KeepAlive keeps the host from deprioritizing the process for the
// lifetime of an export session. The original application held a
// near-silent audio loop open to defeat background-tab throttling;
// any implementation with the same start/stop contract works here.
//
// Start must be idempotent and Stop must release every resource.
// A failing Start is not fatal: the pipeline runs without its pacing
// protection and degrades gracefully.
type KeepAlive interface {
	Start(ctx context.Context) error
	Stop()
}

// heartbeat is the default [KeepAlive]. It wakes up periodically so
// the process never looks idle to the host scheduler.
type heartbeat struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewHeartbeat returns the default [KeepAlive] implementation.
func NewHeartbeat(logger *slog.Logger, interval time.Duration) KeepAlive {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &heartbeat{logger: logger, interval: interval}
}

// Start implements [KeepAlive].
func (h *heartbeat) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		// Already running.
		return nil
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel

	go func() {
		t := time.NewTicker(h.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				h.logger.LogAttrs(ctx, slog.LevelDebug, "export session heartbeat")
			}
		}
	}()

	return nil
}

// Stop implements [KeepAlive].
func (h *heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// noKeepAlive is a [KeepAlive] doing nothing.
type noKeepAlive struct{}

func (noKeepAlive) Start(context.Context) error { return nil }
func (noKeepAlive) Stop()                       {}
