// Copyright (c) 2026 Heerawalla
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ackgate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sweepBatchSize bounds how many deferred acks one sweep drains.
const sweepBatchSize = 50

// sweeperGate is the slice of Gate the sweep loop needs.
type sweeperGate interface {
	DequeueBatch(ctx context.Context, n int) ([]string, error)
	Sent(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
	Enqueue(ctx context.Context, id string) error
}

// Sweeper periodically drains the deferred-acknowledgment set when the
// service runs with ack_mode "queue". Delivery goes through the same gate
// as immediate acks, so a request that was acked immediately before a mode
// switch is never acked twice.
type Sweeper struct {
	gate     sweeperGate
	interval time.Duration

	// Deliver sends the acknowledgment for one request ID. Wired by main
	// to look up the origin record and dispatch the standard ack email.
	Deliver func(ctx context.Context, id string) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper over the given gate.
func NewSweeper(gate *Gate, interval time.Duration) *Sweeper {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{gate: gate, interval: interval}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)
	slog.Info("ack sweeper started", "interval", s.interval)
}

// Stop gracefully shuts down the sweep loop.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("ack sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drains one batch of queued request IDs, acking each through the
// gate. Failed deliveries are re-queued for the next sweep.
func (s *Sweeper) sweep(ctx context.Context) {
	ids, err := s.gate.DequeueBatch(ctx, sweepBatchSize)
	if err != nil {
		slog.Error("ack sweep dequeue failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	slog.Info("draining deferred acknowledgments", "count", len(ids))

	for _, id := range ids {
		sent, err := s.gate.Sent(ctx, id)
		if err != nil {
			slog.Warn("ack gate check failed, re-queueing", "request_id", id, "error", err)
			_ = s.gate.Enqueue(ctx, id)
			continue
		}
		if sent {
			continue
		}
		if s.Deliver == nil {
			continue
		}
		if err := s.Deliver(ctx, id); err != nil {
			slog.Warn("deferred ack delivery failed, re-queueing", "request_id", id, "error", err)
			_ = s.gate.Enqueue(ctx, id)
			continue
		}
		if err := s.gate.Mark(ctx, id); err != nil {
			slog.Error("ack gate mark failed", "request_id", id, "error", err)
		}
	}
}
