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

// Package dispatch delivers composed messages through the configured
// transactional email provider.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
)

// Message is one fully composed outbound email.
type Message struct {
	To      []string          `json:"to"`
	Sender  string            `json:"from"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Subject string            `json:"subject"`
	Text    string            `json:"text,omitempty"`
	HTML    string            `json:"html,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Dispatcher delivers a composed message. Implementations must support
// arbitrary extra headers; auto-replies carry Auto-Submitted to avoid
// autoresponder loops.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// AutoReplyHeaders returns the headers every automatic reply carries so
// other autoresponders do not reply back.
func AutoReplyHeaders() map[string]string {
	return map[string]string{
		"Auto-Submitted":           "auto-replied",
		"X-Auto-Response-Suppress": "All",
		"Precedence":               "auto_reply",
	}
}

// MaskEmail redacts an address for logs, keeping the first character of the
// local part and the domain.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// LogDispatcher logs messages instead of delivering them. Used by the
// offline classify command and whenever no provider key is configured.
type LogDispatcher struct{}

// Send implements Dispatcher by emitting a structured log line.
func (LogDispatcher) Send(_ context.Context, msg Message) error {
	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = MaskEmail(addr)
	}
	slog.Info("dry-run send",
		"to", strings.Join(to, ","),
		"subject", msg.Subject,
		"text_len", len(msg.Text),
		"headers", len(msg.Headers),
	)
	return nil
}
