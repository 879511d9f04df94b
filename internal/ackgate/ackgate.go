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

// Package ackgate provides the idempotency markers that prevent duplicate
// automatic acknowledgments, plus the small Redis-keyed state that rides
// along with them: per-IP submission rate buckets and subscribe/unsubscribe
// markers.
//
// The gate is deliberately check-then-mark, not atomic: the sender checks,
// delivers the email, then marks. Two near-simultaneous emails for the same
// request ID can both observe "not yet sent" and both deliver. A rare
// duplicate "thank you" costs less than a distributed lock on every message.
package ackgate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heerawalla/atelier-relay/internal/requestid"
)

const (
	// MarkerTTL is how long a "first ack sent" marker is remembered.
	// Matches the thread retention window so a revived thread never
	// re-acks.
	MarkerTTL = 180 * 24 * time.Hour

	ackPrefix   = "atelier:ack:"
	queuedSet   = "atelier:ackq"
	ratePrefix  = "atelier:rl:"
	subPrefix   = "atelier:sub:"
	unsubPrefix = "atelier:unsub:"
)

// Gate tracks which request IDs have already received an acknowledgment.
type Gate struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates an acknowledgment gate backed by Redis.
func New(rdb *redis.Client) *Gate {
	return &Gate{rdb: rdb, ttl: MarkerTTL}
}

// Sent reports whether an acknowledgment was already issued for the ID.
func (g *Gate) Sent(ctx context.Context, id string) (bool, error) {
	n, err := g.rdb.Exists(ctx, ackPrefix+requestid.Normalize(id)).Result()
	if err != nil {
		return false, fmt.Errorf("ack gate EXISTS: %w", err)
	}
	return n > 0, nil
}

// Mark records that an acknowledgment has been issued for the ID. Called
// after a successful send so a failed delivery can be retried on
// redelivery.
func (g *Gate) Mark(ctx context.Context, id string) error {
	key := ackPrefix + requestid.Normalize(id)
	if err := g.rdb.Set(ctx, key, 1, g.ttl).Err(); err != nil {
		return fmt.Errorf("ack gate SET: %w", err)
	}
	return nil
}

// Enqueue adds a request ID to the deferred-acknowledgment set, drained by
// the Sweeper when ack_mode is "queue".
func (g *Gate) Enqueue(ctx context.Context, id string) error {
	if err := g.rdb.SAdd(ctx, queuedSet, requestid.Normalize(id)).Err(); err != nil {
		return fmt.Errorf("ack queue SADD: %w", err)
	}
	return nil
}

// DequeueBatch pops up to n queued request IDs.
func (g *Gate) DequeueBatch(ctx context.Context, n int) ([]string, error) {
	ids, err := g.rdb.SPopN(ctx, queuedSet, int64(n)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("ack queue SPOP: %w", err)
	}
	return ids, nil
}

// AllowSubmission counts one submission for the client IP against the
// current hour bucket and reports whether it is within the limit. INCR plus
// EXPIRE, not a transaction: over-admitting one request at the boundary is
// acceptable.
func (g *Gate) AllowSubmission(ctx context.Context, ip string, limit int) (bool, error) {
	bucket := time.Now().UTC().Format("2006010215")
	key := fmt.Sprintf("%s%s:%s", ratePrefix, ip, bucket)
	count, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit INCR: %w", err)
	}
	if count == 1 {
		if err := g.rdb.Expire(ctx, key, time.Hour).Err(); err != nil {
			return false, fmt.Errorf("rate limit EXPIRE: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// SetSubscribed records a mailing-list subscription marker for an address
// and clears any unsubscription marker.
func (g *Gate) SetSubscribed(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := g.rdb.Set(ctx, subPrefix+email, 1, 0).Err(); err != nil {
		return fmt.Errorf("subscribe SET: %w", err)
	}
	if err := g.rdb.Del(ctx, unsubPrefix+email).Err(); err != nil {
		return fmt.Errorf("subscribe DEL unsub: %w", err)
	}
	return nil
}

// SetUnsubscribed records an unsubscription marker and clears the
// subscription marker.
func (g *Gate) SetUnsubscribed(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := g.rdb.Set(ctx, unsubPrefix+email, 1, 0).Err(); err != nil {
		return fmt.Errorf("unsubscribe SET: %w", err)
	}
	if err := g.rdb.Del(ctx, subPrefix+email).Err(); err != nil {
		return fmt.Errorf("unsubscribe DEL sub: %w", err)
	}
	return nil
}

// IsUnsubscribed reports whether an address has opted out.
func (g *Gate) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	n, err := g.rdb.Exists(ctx, unsubPrefix+normalizeEmail(email)).Result()
	if err != nil {
		return false, fmt.Errorf("unsubscribe EXISTS: %w", err)
	}
	return n > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
