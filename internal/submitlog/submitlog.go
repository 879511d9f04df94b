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

// Package submitlog provides a Postgres-backed log of accepted website
// submissions. Redis holds the live routing state with a retention TTL;
// this log is the durable record that outlives it, for bookkeeping and
// attribution reporting.
package submitlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heerawalla/atelier-relay/internal/models"
)

// Record is one logged submission.
type Record struct {
	ID             int64
	RequestID      string
	Kind           string
	Name           string
	Email          string
	Phone          string
	PhonePreferred bool
	Subject        string
	Message        string
	Source         string
	PageURL        string
	UTMSource      string
	UTMMedium      string
	UTMCampaign    string
	UTMTerm        string
	UTMContent     string
	Referrer       string
	CreatedAt      time.Time
}

// Store provides insert and lookup operations for the submission log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a submission log backed by the given Postgres pool. It
// ensures the submissions table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure submission schema: %w", err)
	}
	slog.Info("submission log initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS submissions (
			id              BIGSERIAL PRIMARY KEY,
			request_id      TEXT NOT NULL UNIQUE,
			kind            TEXT NOT NULL,
			name            TEXT DEFAULT '',
			email           TEXT NOT NULL,
			phone           TEXT DEFAULT '',
			phone_preferred BOOLEAN DEFAULT FALSE,
			subject         TEXT DEFAULT '',
			message         TEXT NOT NULL,
			source          TEXT DEFAULT '',
			page_url        TEXT DEFAULT '',
			utm_source      TEXT DEFAULT '',
			utm_medium      TEXT DEFAULT '',
			utm_campaign    TEXT DEFAULT '',
			utm_term        TEXT DEFAULT '',
			utm_content     TEXT DEFAULT '',
			referrer        TEXT DEFAULT '',
			created_at      TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_email ON submissions(email);
		CREATE INDEX IF NOT EXISTS idx_submissions_kind ON submissions(kind);
		CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
	`)
	return err
}

// Insert logs one submission. A duplicate request ID is a redelivered
// webhook, not an error: the first write wins and the duplicate is
// dropped silently.
func (s *Store) Insert(ctx context.Context, sub models.Submission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions
			(request_id, kind, name, email, phone, phone_preferred, subject,
			 message, source, page_url, utm_source, utm_medium, utm_campaign,
			 utm_term, utm_content, referrer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (request_id) DO NOTHING
	`, sub.RequestID, sub.Kind, sub.Name, sub.Email, sub.Phone, sub.PhonePreferred,
		sub.Subject, sub.Message, sub.Source, sub.PageURL, sub.UTMSource,
		sub.UTMMedium, sub.UTMCampaign, sub.UTMTerm, sub.UTMContent, sub.Referrer)
	return err
}

// Get retrieves a submission by request ID.
func (s *Store) Get(ctx context.Context, requestID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, request_id, kind, name, email, phone, phone_preferred,
		       subject, message, source, page_url, utm_source, utm_medium,
		       utm_campaign, utm_term, utm_content, referrer, created_at
		FROM submissions
		WHERE request_id = $1
	`, requestID)
	return scanRecord(row)
}

// ListByEmail returns all submissions from one address, newest first.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, kind, name, email, phone, phone_preferred,
		       subject, message, source, page_url, utm_source, utm_medium,
		       utm_campaign, utm_term, utm_content, referrer, created_at
		FROM submissions
		WHERE email = $1
		ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CountSince returns the number of submissions logged after the cutoff,
// for capacity reporting.
func (s *Store) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM submissions WHERE created_at >= $1
	`, cutoff).Scan(&n)
	return n, err
}

// scanRecord scans a single row into a Record.
func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.RequestID, &r.Kind, &r.Name, &r.Email, &r.Phone,
		&r.PhonePreferred, &r.Subject, &r.Message, &r.Source, &r.PageURL,
		&r.UTMSource, &r.UTMMedium, &r.UTMCampaign, &r.UTMTerm,
		&r.UTMContent, &r.Referrer, &r.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// collectRecords scans multiple rows into a slice of Records.
func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.Kind, &r.Name, &r.Email, &r.Phone,
			&r.PhonePreferred, &r.Subject, &r.Message, &r.Source, &r.PageURL,
			&r.UTMSource, &r.UTMMedium, &r.UTMCampaign, &r.UTMTerm,
			&r.UTMContent, &r.Referrer, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
