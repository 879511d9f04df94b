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

package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/models"
	"github.com/heerawalla/atelier-relay/internal/threadstore"
)

type fakeStore struct {
	origins   map[string]threadstore.Origin
	summaries map[string]threadstore.Summary
	saved     map[string]threadstore.Origin
	originErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		origins:   map[string]threadstore.Origin{},
		summaries: map[string]threadstore.Summary{},
		saved:     map[string]threadstore.Origin{},
	}
}

func (s *fakeStore) Origin(_ context.Context, id string) (*threadstore.Origin, error) {
	if s.originErr != nil {
		return nil, s.originErr
	}
	if o, ok := s.origins[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveOrigin(_ context.Context, id string, o threadstore.Origin) error {
	s.saved[id] = o
	s.origins[id] = o
	return nil
}

func (s *fakeStore) Summary(_ context.Context, id string) (*threadstore.Summary, error) {
	if sum, ok := s.summaries[id]; ok {
		return &sum, nil
	}
	return nil, nil
}

type fakeGate struct {
	sent    map[string]bool
	marked  []string
	queued  []string
	sentErr error
}

func newFakeGate() *fakeGate {
	return &fakeGate{sent: map[string]bool{}}
}

func (g *fakeGate) Sent(_ context.Context, id string) (bool, error) {
	if g.sentErr != nil {
		return false, g.sentErr
	}
	return g.sent[id], nil
}

func (g *fakeGate) Mark(_ context.Context, id string) error {
	g.sent[id] = true
	g.marked = append(g.marked, id)
	return nil
}

func (g *fakeGate) Enqueue(_ context.Context, id string) error {
	g.queued = append(g.queued, id)
	return nil
}

type recordingDispatcher struct {
	sent    []dispatch.Message
	failOn  int // 1-based index of the send that fails; 0 means never
	nextErr error
}

func (d *recordingDispatcher) Send(_ context.Context, msg dispatch.Message) error {
	d.sent = append(d.sent, msg)
	if d.failOn != 0 && len(d.sent) == d.failOn {
		return d.nextErr
	}
	return nil
}

func defaultOptions() Options {
	return Options{
		ForwardTo:       "orders@heerawalla.com",
		ReplyTo:         "atelier@heerawalla.com",
		NoReplyAddress:  "no-reply@heerawalla.com",
		InternalSenders: []string{"atelier@heerawalla.com"},
		SendAck:         true,
		SendReject:      true,
		AckMode:         "immediate",
	}
}

func rawMessage(headers, body string) []byte {
	return []byte(headers + "\r\n\r\n" + body)
}

func TestProcess_ForwardAccepted(t *testing.T) {
	store := newFakeStore()
	store.summaries["AB12CD"] = threadstore.Summary{
		Subject: "Custom ring inquiry",
		Body:    "I would like a custom engagement ring.",
		Email:   "maya@example.com",
	}
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		EnvelopeTo: "atelier@heerawalla.com",
		Raw: rawMessage(
			"From: Maya Rao <maya@example.com>\r\nSubject: Re: Custom ring inquiry [HW-REQ:AB12CD]",
			"Yes, platinum please.\r\n\r\nOn Mon, Aug 24, 2026 Heerawalla wrote:\r\n> We have received your request.",
		),
	})

	if out.Route != RouteForwardAccepted {
		t.Fatalf("route = %s, want %s", out.Route, RouteForwardAccepted)
	}
	if out.RequestID != "AB12CD" {
		t.Errorf("request id = %q, want AB12CD", out.RequestID)
	}
	if len(d.sent) != 2 {
		t.Fatalf("sent %d messages, want forward + ack", len(d.sent))
	}

	forward := d.sent[0]
	if forward.To[0] != "orders@heerawalla.com" {
		t.Errorf("forward to = %q", forward.To[0])
	}
	if forward.ReplyTo != "atelier@heerawalla.com" {
		t.Errorf("forward reply-to = %q", forward.ReplyTo)
	}
	if !strings.Contains(forward.Subject, "[HW-REQ:AB12CD]") {
		t.Errorf("forward subject missing tag: %q", forward.Subject)
	}
	if !strings.Contains(forward.Text, "Yes, platinum please.") {
		t.Errorf("forward body missing reply text: %q", forward.Text)
	}
	if strings.Contains(forward.Text, "> We have received") {
		t.Errorf("forward body kept quoted history: %q", forward.Text)
	}
	if !strings.Contains(forward.Text, "--- Original request ---") ||
		!strings.Contains(forward.Text, "custom engagement ring") {
		t.Errorf("forward body missing summary: %q", forward.Text)
	}

	ack := d.sent[1]
	if ack.To[0] != "maya@example.com" {
		t.Errorf("ack to = %q", ack.To[0])
	}
	if ack.Subject != dispatch.AckSubject {
		t.Errorf("ack subject = %q", ack.Subject)
	}
	if ack.Headers["Auto-Submitted"] != "auto-replied" {
		t.Errorf("ack missing auto-reply headers: %v", ack.Headers)
	}
	if len(gate.marked) != 1 || gate.marked[0] != "AB12CD" {
		t.Errorf("gate marked = %v, want [AB12CD]", gate.marked)
	}

	saved, ok := store.saved["AB12CD"]
	if !ok {
		t.Fatal("origin was not refreshed")
	}
	if saved.Email != "maya@example.com" || saved.Name != "Maya Rao" {
		t.Errorf("saved origin = %+v", saved)
	}
}

func TestProcess_ForwardAckAlreadySent(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	gate.sent["AB12CD"] = true
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\nSubject: Re: Ring [HW-REQ:AB12CD]",
			"Second reply on the same thread.",
		),
	})

	if out.Route != RouteForwardAccepted {
		t.Fatalf("route = %s", out.Route)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want forward only", len(d.sent))
	}
	if len(gate.marked) != 0 {
		t.Errorf("gate re-marked: %v", gate.marked)
	}
}

func TestProcess_ForwardGateCheckError(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	gate.sentErr = errors.New("redis unavailable")
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\nSubject: Re: Ring [HW-REQ:AB12CD]",
			"Hello again.",
		),
	})

	// A held gate must suppress the ack rather than risk a duplicate.
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want forward only", len(d.sent))
	}
}

func TestProcess_ForwardSendFailureSkipsAck(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{failOn: 1, nextErr: errors.New("provider down")}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\nSubject: Re: Ring [HW-REQ:AB12CD]",
			"Hello.",
		),
	})

	if out.Route != RouteForwardAccepted || out.Reason != "send_failed" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(d.sent) != 1 {
		t.Errorf("ack attempted after failed forward")
	}
	if len(gate.marked) != 0 {
		t.Errorf("gate marked after failed forward: %v", gate.marked)
	}
}

func TestProcess_ForwardQueuedAck(t *testing.T) {
	opts := defaultOptions()
	opts.AckMode = "queue"
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, opts)

	c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\nSubject: Re: Ring [HW-REQ:AB12CD]",
			"Hello.",
		),
	})

	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want forward only", len(d.sent))
	}
	if len(gate.queued) != 1 || gate.queued[0] != "AB12CD" {
		t.Errorf("queued = %v, want [AB12CD]", gate.queued)
	}
}

func TestProcess_InternalReply(t *testing.T) {
	store := newFakeStore()
	store.origins["XY9Z88"] = threadstore.Origin{Email: "arjun@example.com", Name: "Arjun"}
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: Heerawalla Atelier <atelier@heerawalla.com>\r\nSubject: Re: Bracelet [HW-REQ:XY9Z88]",
			"We can have it ready by Friday.\r\n\r\nOn Tue Arjun wrote:\r\n> When will it be ready?",
		),
	})

	if out.Route != RouteInternalReply {
		t.Fatalf("route = %s", out.Route)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want exactly one", len(d.sent))
	}
	msg := d.sent[0]
	if msg.To[0] != "arjun@example.com" {
		t.Errorf("to = %q", msg.To[0])
	}
	if !strings.Contains(msg.Subject, "[HW-REQ:XY9Z88]") {
		t.Errorf("subject missing tag: %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "ready by Friday") {
		t.Errorf("text = %q", msg.Text)
	}
	if strings.Contains(msg.Text, "When will it be ready") {
		t.Errorf("quoted history leaked to customer: %q", msg.Text)
	}
	if len(store.saved) != 0 {
		t.Errorf("internal sender mutated origin: %v", store.saved)
	}
}

func TestProcess_InternalReplyMissingOrigin(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: atelier@heerawalla.com\r\nSubject: Re: Old thread [HW-REQ:GG7777]",
			"Following up on this.",
		),
	})

	if out.Route != RouteAbort || out.Reason != "origin_missing" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(d.sent) != 0 {
		t.Errorf("sent %d messages, want zero", len(d.sent))
	}
}

func TestProcess_InternalReplyOriginLookupError(t *testing.T) {
	store := newFakeStore()
	store.originErr = errors.New("redis unavailable")
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: atelier@heerawalla.com\r\nSubject: Re: Thread [HW-REQ:GG7777]",
			"Hello.",
		),
	})

	if out.Route != RouteAbort || out.Reason != "origin_lookup_failed" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(d.sent) != 0 {
		t.Errorf("sent %d messages, want zero", len(d.sent))
	}
}

func TestProcess_Reject(t *testing.T) {
	tests := []struct {
		name    string
		headers string
		body    string
	}{
		{
			name:    "no request id anywhere",
			headers: "From: stranger@example.com\r\nSubject: Hello there",
			body:    "Do you sell earrings?",
		},
		{
			name:    "forwarded subject with id",
			headers: "From: stranger@example.com\r\nSubject: Fwd: Ring [HW-REQ:AB12CD]",
			body:    "Forwarding this to you.",
		},
		{
			name:    "resent header with id",
			headers: "From: stranger@example.com\r\nResent-From: other@example.com\r\nSubject: Re: Ring [HW-REQ:AB12CD]",
			body:    "Passing along.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			gate := newFakeGate()
			d := &recordingDispatcher{}
			c := New(store, gate, d, defaultOptions())

			out := c.Process(context.Background(), models.InboundMessage{
				Raw: rawMessage(tt.headers, tt.body),
			})

			if out.Route != RouteReject {
				t.Fatalf("route = %s, want %s", out.Route, RouteReject)
			}
			if len(d.sent) != 1 {
				t.Fatalf("sent %d messages, want one reject", len(d.sent))
			}
			msg := d.sent[0]
			if msg.To[0] != "stranger@example.com" {
				t.Errorf("to = %q", msg.To[0])
			}
			if msg.Subject != dispatch.RejectSubject {
				t.Errorf("subject = %q", msg.Subject)
			}
			if msg.Headers["Auto-Submitted"] != "auto-replied" {
				t.Errorf("reject missing auto-reply headers: %v", msg.Headers)
			}
		})
	}
}

func TestProcess_RejectCopiesToRejectsMailbox(t *testing.T) {
	opts := defaultOptions()
	opts.ForwardRejectsTo = "rejects@heerawalla.com"
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, opts)

	raw := rawMessage("From: stranger@example.com\r\nSubject: Hello", "No id here.")
	out := c.Process(context.Background(), models.InboundMessage{Raw: raw})

	if out.Route != RouteReject {
		t.Fatalf("route = %s", out.Route)
	}
	if len(d.sent) != 2 {
		t.Fatalf("sent %d messages, want copy + reject", len(d.sent))
	}
	if d.sent[0].To[0] != "rejects@heerawalla.com" {
		t.Errorf("copy to = %q", d.sent[0].To[0])
	}
	if d.sent[0].Text != string(raw) {
		t.Errorf("copy is not the raw message")
	}
}

func TestProcess_RejectDisabled(t *testing.T) {
	opts := defaultOptions()
	opts.SendReject = false
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, opts)

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage("From: stranger@example.com\r\nSubject: Hello", "No id."),
	})

	if out.Route != RouteReject {
		t.Fatalf("route = %s", out.Route)
	}
	if len(d.sent) != 0 {
		t.Errorf("sent %d messages, want zero", len(d.sent))
	}
}

func TestProcess_Skips(t *testing.T) {
	tests := []struct {
		name    string
		msg     models.InboundMessage
		route   Route
	}{
		{
			name: "no-reply sink recipient",
			msg: models.InboundMessage{
				EnvelopeTo: "no-reply@heerawalla.com",
				Raw:        rawMessage("From: maya@example.com\r\nSubject: Re: [HW-REQ:AB12CD]", "Hi."),
			},
			route: RouteSkipNoReplySink,
		},
		{
			name: "no-reply sink via to header",
			msg: models.InboundMessage{
				Raw: rawMessage("From: maya@example.com\r\nTo: Heerawalla <no-reply@heerawalla.com>\r\nSubject: Hi", "Hi."),
			},
			route: RouteSkipNoReplySink,
		},
		{
			name: "auto-submitted reply",
			msg: models.InboundMessage{
				Raw: rawMessage("From: maya@example.com\r\nAuto-Submitted: auto-replied\r\nSubject: Out of office", "Away."),
			},
			route: RouteSkipAutoOrBulk,
		},
		{
			name: "precedence bulk",
			msg: models.InboundMessage{
				Raw: rawMessage("From: news@example.com\r\nPrecedence: bulk\r\nSubject: Digest", "News."),
			},
			route: RouteSkipAutoOrBulk,
		},
		{
			name: "list mail",
			msg: models.InboundMessage{
				Raw: rawMessage("From: talk@example.com\r\nList-Id: <talk.example.com>\r\nSubject: Thread", "Post."),
			},
			route: RouteSkipAutoOrBulk,
		},
		{
			name: "machine sender address",
			msg: models.InboundMessage{
				Raw: rawMessage("From: noreply@shop.example.com\r\nSubject: Receipt", "Order."),
			},
			route: RouteSkipAutoOrBulk,
		},
		{
			name: "mailer daemon bounce",
			msg: models.InboundMessage{
				Raw: rawMessage("From: MAILER-DAEMON@mx.example.com\r\nSubject: Undeliverable", "Bounce."),
			},
			route: RouteSkipAutoOrBulk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			gate := newFakeGate()
			d := &recordingDispatcher{}
			c := New(store, gate, d, defaultOptions())

			out := c.Process(context.Background(), tt.msg)
			if out.Route != tt.route {
				t.Fatalf("route = %s, want %s", out.Route, tt.route)
			}
			if len(d.sent) != 0 {
				t.Errorf("sent %d messages, want zero", len(d.sent))
			}
			if len(store.saved) != 0 {
				t.Errorf("state mutated: %v", store.saved)
			}
		})
	}
}

func TestProcess_Aborts(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{
			name:   "missing from",
			raw:    "Subject: Hello\r\n\r\nBody.",
			reason: "missing_from",
		},
		{
			name:   "unparseable from",
			raw:    "From: <<<>>>\r\nSubject: Hello\r\n\r\nBody.",
			reason: "invalid_sender",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			gate := newFakeGate()
			d := &recordingDispatcher{}
			c := New(store, gate, d, defaultOptions())

			out := c.Process(context.Background(), models.InboundMessage{Raw: []byte(tt.raw)})
			if out.Route != RouteAbort {
				t.Fatalf("route = %s, want %s", out.Route, RouteAbort)
			}
			if out.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", out.Reason, tt.reason)
			}
			if len(d.sent) != 0 {
				t.Errorf("sent %d messages, want zero", len(d.sent))
			}
		})
	}
}

func TestProcess_RequestIDPrecedence(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	// The subject carries one ID, the quoted body another. The subject
	// wins so the thread follows what the customer actually replied to.
	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\nSubject: Re: Ring [HW-REQ:AB12CD]",
			"Hi.\r\n\r\nOn Mon Heerawalla wrote:\r\n> Heerawalla Request ID: ZZ9999",
		),
	})

	if out.RequestID != "AB12CD" {
		t.Errorf("request id = %q, want AB12CD", out.RequestID)
	}
}

func TestProcess_BodyOnlyRequestID(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\nSubject: Re: Your inquiry",
			"Thanks!\r\n\r\nOn Mon Heerawalla wrote:\r\n> Heerawalla Request ID: XY9Z88",
		),
	})

	if out.Route != RouteForwardAccepted {
		t.Fatalf("route = %s", out.Route)
	}
	if out.RequestID != "XY9Z88" {
		t.Errorf("request id = %q, want XY9Z88", out.RequestID)
	}
	if !strings.Contains(d.sent[0].Subject, "[HW-REQ:XY9Z88]") {
		t.Errorf("forward subject not tagged: %q", d.sent[0].Subject)
	}
}

func TestProcess_EncodedSubjectAndBody(t *testing.T) {
	store := newFakeStore()
	gate := newFakeGate()
	d := &recordingDispatcher{}
	c := New(store, gate, d, defaultOptions())

	out := c.Process(context.Background(), models.InboundMessage{
		Raw: rawMessage(
			"From: maya@example.com\r\n"+
				"Subject: =?UTF-8?B?UmU6IFJpbmcgW0hXLVJFUTpBQjEyQ0Rd?=\r\n"+
				"Content-Transfer-Encoding: quoted-printable\r\n"+
				"Content-Type: text/plain; charset=utf-8",
			"C=C3=B4te d'Or stones please=2C thank you.",
		),
	})

	if out.Route != RouteForwardAccepted {
		t.Fatalf("route = %s", out.Route)
	}
	if out.RequestID != "AB12CD" {
		t.Errorf("request id = %q (encoded subject not decoded)", out.RequestID)
	}
	if !strings.Contains(d.sent[0].Text, "Côte d'Or stones please,") {
		t.Errorf("body not decoded: %q", d.sent[0].Text)
	}
}
