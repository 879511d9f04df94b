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

// Package threadstore persists per-request thread state in Redis: the Origin
// Record that maps a request ID back to the customer who opened the thread,
// and the Request Summary snapshot of the original inquiry text.
//
// Both expire independently after the retention window. Absence after expiry
// is an expected terminal state, not an error: lookups return (nil, nil).
package threadstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/heerawalla/atelier-relay/internal/requestid"
)

const (
	// RetentionTTL bounds how long thread state outlives the original
	// inquiry. A staff reply after this window is unroutable by design.
	RetentionTTL = 180 * 24 * time.Hour

	// Summary caps: long inquiries are truncated so a forward stays readable.
	SummaryMaxLines = 60
	SummaryMaxChars = 1800

	originPrefix  = "atelier:origin:"
	summaryPrefix = "atelier:summary:"
)

// Origin identifies whose thread a request ID belongs to.
type Origin struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Summary is the stored snapshot of the original inquiry.
type Summary struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}

// Store provides thread-state persistence backed by Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a thread store with the default retention window.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, ttl: RetentionTTL}
}

// SaveOrigin records (or refreshes) the origin for a request ID. Every
// external email carrying the ID refreshes the record so the customer's most
// recent reply-from address stays current. Callers must never invoke this
// for internal senders: staff replies read origins, they do not define them.
func (s *Store) SaveOrigin(ctx context.Context, id string, o Origin) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal origin: %w", err)
	}
	key := originPrefix + requestid.Normalize(id)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store origin %s: %w", key, err)
	}
	return nil
}

// Origin looks up the origin for a request ID. Returns (nil, nil) when the
// record never existed or has expired.
func (s *Store) Origin(ctx context.Context, id string) (*Origin, error) {
	key := originPrefix + requestid.Normalize(id)
	data, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load origin %s: %w", key, err)
	}
	var o Origin
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("decode origin %s: %w", key, err)
	}
	return &o, nil
}

// SaveSummary stores the original-inquiry snapshot for a request ID, capped
// to SummaryMaxLines/SummaryMaxChars with an explicit truncation mark.
func (s *Store) SaveSummary(ctx context.Context, id string, sum Summary) error {
	sum.Body = truncateBody(sum.Body)
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := summaryPrefix + requestid.Normalize(id)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store summary %s: %w", key, err)
	}
	return nil
}

// Summary looks up the stored snapshot for a request ID. Returns (nil, nil)
// when absent or expired.
func (s *Store) Summary(ctx context.Context, id string) (*Summary, error) {
	key := summaryPrefix + requestid.Normalize(id)
	data, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load summary %s: %w", key, err)
	}
	var sum Summary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", key, err)
	}
	return &sum, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

// truncateBody enforces the line and character caps, appending "..." when
// anything was dropped.
func truncateBody(body string) string {
	truncated := false
	lines := strings.Split(body, "\n")
	if len(lines) > SummaryMaxLines {
		lines = lines[:SummaryMaxLines]
		truncated = true
	}
	out := strings.Join(lines, "\n")
	if len(out) > SummaryMaxChars {
		// Never cut mid-rune.
		cut := SummaryMaxChars
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
		truncated = true
	}
	if truncated {
		out = strings.TrimRight(out, "\n ") + "\n..."
	}
	return out
}
