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

// Heerawalla Atelier Relay — Offline Classifier
//
// Standalone CLI that runs one raw email through the routing pipeline
// with in-memory state and dry-run dispatch. Useful for debugging why a
// particular message routed the way it did, without touching Redis or
// sending anything.
//
// Usage:
//
//	go run ./cmd/classify/ --file message.eml [--envelope-to addr] [--origin maya@example.com]
//
// Pass --file - to read the message from stdin.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/heerawalla/atelier-relay/internal/classifier"
	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/mailparse"
	"github.com/heerawalla/atelier-relay/internal/models"
	"github.com/heerawalla/atelier-relay/internal/requestid"
	"github.com/heerawalla/atelier-relay/internal/threadstore"
)

// memStore is an in-memory stand-in for the Redis thread store.
type memStore struct {
	origins   map[string]threadstore.Origin
	summaries map[string]threadstore.Summary
}

func (s *memStore) Origin(_ context.Context, id string) (*threadstore.Origin, error) {
	if o, ok := s.origins[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (s *memStore) SaveOrigin(_ context.Context, id string, o threadstore.Origin) error {
	s.origins[id] = o
	return nil
}

func (s *memStore) Summary(_ context.Context, id string) (*threadstore.Summary, error) {
	if sum, ok := s.summaries[id]; ok {
		return &sum, nil
	}
	return nil, nil
}

// memGate is an in-memory stand-in for the acknowledgment gate.
type memGate struct {
	sent map[string]bool
}

func (g *memGate) Sent(_ context.Context, id string) (bool, error) { return g.sent[id], nil }
func (g *memGate) Mark(_ context.Context, id string) error {
	g.sent[id] = true
	return nil
}
func (g *memGate) Enqueue(_ context.Context, id string) error { return nil }

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	fileFlag := flag.String("file", "", "Path to the raw RFC 822 message, or - for stdin (required)")
	envelopeFlag := flag.String("envelope-to", "", "Envelope recipient address (optional)")
	originFlag := flag.String("origin", "", "Seed an origin record for the message's request ID (optional; for testing internal replies)")
	internalFlag := flag.String("internal", "atelier@heerawalla.com", "Comma-separated internal sender addresses")
	flag.Parse()

	if *fileFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --file is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	var raw []byte
	var err error
	if *fileFlag == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*fileFlag)
	}
	if err != nil {
		slog.Error("failed to read message", "error", err)
		os.Exit(1)
	}

	store := &memStore{
		origins:   map[string]threadstore.Origin{},
		summaries: map[string]threadstore.Summary{},
	}
	gate := &memGate{sent: map[string]bool{}}

	c := classifier.New(store, gate, dispatch.LogDispatcher{}, classifier.Options{
		ForwardTo:       "orders@heerawalla.com",
		ReplyTo:         "atelier@heerawalla.com",
		NoReplyAddress:  "no-reply@heerawalla.com",
		InternalSenders: strings.Split(*internalFlag, ","),
		SendAck:         true,
		SendReject:      true,
		AckMode:         "immediate",
	})

	ctx := context.Background()

	if *originFlag != "" {
		// Seed the origin under whatever ID the message carries, so an
		// internal reply has a thread to route to.
		seedOrigin(ctx, store, raw, *originFlag)
	}

	outcome := c.Process(ctx, models.InboundMessage{
		EnvelopeTo: *envelopeFlag,
		Raw:        raw,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Route     string `json:"route"`
		Reason    string `json:"reason,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	}{string(outcome.Route), outcome.Reason, outcome.RequestID}); err != nil {
		slog.Error("encode outcome", "error", err)
		os.Exit(1)
	}
}

// seedOrigin extracts the message's request ID and stores an origin for
// it, letting internal-reply routing be exercised offline.
func seedOrigin(ctx context.Context, store *memStore, raw []byte, email string) {
	header, body := mailparse.Split(string(raw))
	subject := mailparse.DecodeSubject(mailparse.Header(header, "Subject"))
	id := requestid.FromSubjectOrBody(subject, mailparse.DecodeBody(header, body))
	if id == "" {
		slog.Warn("--origin given but the message carries no request id")
		return
	}
	_ = store.SaveOrigin(ctx, id, threadstore.Origin{Email: email})
	slog.Info("seeded origin", "request_id", id, "email", email)
}
