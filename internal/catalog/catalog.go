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

// Package catalog republishes the atelier's content feeds. The feeds are
// maintained as published spreadsheets; this service fetches the CSV
// exports, turns them into JSON records, and caches the result in Redis
// so the site doesn't hammer the publisher on every page view.
package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheTTL is how long a fetched feed is served from Redis before being
// refetched.
const CacheTTL = 600 * time.Second

const cacheKeyPrefix = "atelier:catalog:"

// ErrUnknownFeed is returned by Feed when the named feed is not configured.
var ErrUnknownFeed = errors.New("catalog: unknown feed")

// Record is one row of a feed, keyed by the header row.
type Record map[string]string

// Service fetches and caches the content feeds.
type Service struct {
	httpClient *http.Client
	rdb        *redis.Client // nil disables caching
	feeds      map[string]string
}

// New creates a catalog service over the named feed URLs. rdb may be nil,
// in which case every request fetches fresh.
func New(httpClient *http.Client, rdb *redis.Client, feeds map[string]string) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{httpClient: httpClient, rdb: rdb, feeds: feeds}
}

// Feeds lists the configured feed names.
func (s *Service) Feeds() []string {
	var names []string
	for name := range s.feeds {
		names = append(names, name)
	}
	return names
}

// Feed returns the records of the named feed, from cache when fresh.
func (s *Service) Feed(ctx context.Context, name string) ([]Record, error) {
	url, ok := s.feeds[name]
	if !ok || url == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeed, name)
	}

	if cached := s.fromCache(ctx, name); cached != nil {
		return cached, nil
	}

	records, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, name, records)
	return records, nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}
	return ParseCSV(resp.Body)
}

// ParseCSV reads a header-rowed CSV into records. Rows shorter than the
// header are padded with empty strings; entirely blank rows are dropped.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec := Record{}
		blank := true
		for i, key := range header {
			if key == "" {
				continue
			}
			var val string
			if i < len(row) {
				val = strings.TrimSpace(row[i])
			}
			if val != "" {
				blank = false
			}
			rec[key] = val
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *Service) fromCache(ctx context.Context, name string) []Record {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, cacheKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		slog.Warn("catalog cache read failed", "feed", name, "error", err)
		return nil
	}
	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.Warn("catalog cache entry corrupt, refetching", "feed", name, "error", err)
		return nil
	}
	return records
}

func (s *Service) toCache(ctx context.Context, name string, records []Record) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKeyPrefix+name, raw, CacheTTL).Err(); err != nil {
		slog.Warn("catalog cache write failed", "feed", name, "error", err)
	}
}
