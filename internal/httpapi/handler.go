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

// Package httpapi serves the relay's HTTP surface: the inbound-email
// webhook from the mail provider, the website's submission and
// subscription forms, consultation scheduling, and the catalog feeds.
// Handlers validate and dispatch; the routing logic lives in the
// classifier and the stores.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/heerawalla/atelier-relay/internal/calendar"
	"github.com/heerawalla/atelier-relay/internal/catalog"
	"github.com/heerawalla/atelier-relay/internal/classifier"
	"github.com/heerawalla/atelier-relay/internal/config"
	"github.com/heerawalla/atelier-relay/internal/contacts"
	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/models"
	"github.com/heerawalla/atelier-relay/internal/threadstore"
)

// Processor classifies one inbound email.
type Processor interface {
	Process(ctx context.Context, msg models.InboundMessage) classifier.Outcome
}

// ThreadStore is the routing-state writer used by the submission flow.
type ThreadStore interface {
	SaveOrigin(ctx context.Context, id string, o threadstore.Origin) error
	SaveSummary(ctx context.Context, id string, sum threadstore.Summary) error
}

// Gate covers the idempotency, rate-limit, and subscription markers.
type Gate interface {
	Sent(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
	Enqueue(ctx context.Context, id string) error
	AllowSubmission(ctx context.Context, ip string, limit int) (bool, error)
	SetSubscribed(ctx context.Context, email string) error
	SetUnsubscribed(ctx context.Context, email string) error
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
}

// SubmissionLog is the durable submission record.
type SubmissionLog interface {
	Insert(ctx context.Context, sub models.Submission) error
}

// DirectorySync adds submitters to the atelier's contact directory.
type DirectorySync interface {
	Upsert(ctx context.Context, c contacts.Contact) error
}

// Scheduler books consultation slots.
type Scheduler interface {
	Availability(ctx context.Context, day time.Time) ([]calendar.Slot, error)
	Book(ctx context.Context, req calendar.BookingRequest) (*calendar.Booking, error)
}

// ContentFeeds serves the catalog feeds.
type ContentFeeds interface {
	Feed(ctx context.Context, name string) ([]catalog.Record, error)
}

// DomainVerifier checks that a submitter's domain can receive mail.
type DomainVerifier interface {
	HasMX(ctx context.Context, domain string) bool
}

// Handler holds the wired dependencies for all routes. Optional
// dependencies (scheduler, feeds, directory, submission log, verifier)
// may be nil; their routes degrade or disable accordingly.
type Handler struct {
	Processor  Processor
	Store      ThreadStore
	Gate       Gate
	Dispatcher dispatch.Dispatcher
	Log        SubmissionLog
	Directory  DirectorySync
	Scheduler  Scheduler
	Feeds      ContentFeeds
	Verifier   DomainVerifier
	Config     *config.Config

	// Ping reports backend store health for /health; nil means healthy.
	Ping func(ctx context.Context) error
}

// inboundPayload is the JSON wrapper some providers POST; others deliver
// the raw RFC 822 message as the request body.
type inboundPayload struct {
	EnvelopeTo string `json:"envelope_to"`
	From       string `json:"from"`
	Raw        string `json:"raw"` // base64 or plain text
}

// ServeInbound accepts one inbound email and classifies it. The response
// is always 200 with the resolved route: the mail provider must not
// retry a message we have terminally routed, and even an abort is
// terminal from the provider's point of view.
func (h *Handler) ServeInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		slog.Error("failed to read inbound body", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"route": string(classifier.RouteAbort)})
		return
	}

	msg := decodeInbound(r.Header.Get("Content-Type"), body)
	outcome := h.Processor.Process(r.Context(), msg)

	writeJSON(w, http.StatusOK, map[string]string{
		"route":      string(outcome.Route),
		"request_id": outcome.RequestID,
	})
}

// decodeInbound turns the request body into an InboundMessage, accepting
// either the JSON wrapper or a bare RFC 822 message.
func decodeInbound(contentType string, body []byte) models.InboundMessage {
	if strings.Contains(contentType, "application/json") {
		var payload inboundPayload
		if err := json.Unmarshal(body, &payload); err == nil && payload.Raw != "" {
			raw := []byte(payload.Raw)
			if decoded, err := base64.StdEncoding.DecodeString(payload.Raw); err == nil {
				raw = decoded
			}
			return models.InboundMessage{
				EnvelopeTo: payload.EnvelopeTo,
				From:       payload.From,
				Raw:        raw,
			}
		}
	}
	return models.InboundMessage{Raw: body}
}

// ServeHealth reports backend store health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			http.Error(w, "backend unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

// clientIP resolves the caller's address, preferring the first
// X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
