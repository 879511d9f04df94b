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

// Package classifier routes one inbound email to its terminal outcome.
//
// Every inbound message resolves to exactly one route: skipped (no-reply
// sink or auto/bulk mail), an internal staff reply routed back to the
// customer who owns the thread, a reject asking the sender to use the
// website, or an accepted forward to the atelier mailbox. Wrong routing
// leaks fragments of one customer's thread to another, so the decision
// order here is deliberate and every branch is terminal.
package classifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/mailparse"
	"github.com/heerawalla/atelier-relay/internal/metrics"
	"github.com/heerawalla/atelier-relay/internal/models"
	"github.com/heerawalla/atelier-relay/internal/replybody"
	"github.com/heerawalla/atelier-relay/internal/requestid"
	"github.com/heerawalla/atelier-relay/internal/threadstore"
	"github.com/heerawalla/atelier-relay/internal/validate"
)

// Route is the terminal outcome of classifying one inbound email.
type Route string

const (
	// RouteAbort means the message could not be processed at all; nothing
	// was sent and no state was mutated.
	RouteAbort Route = "abort"

	// RouteSkipNoReplySink: mail addressed to the no-reply sink is dropped.
	RouteSkipNoReplySink Route = "skip_no_reply_sink"

	// RouteSkipAutoOrBulk: auto-generated or bulk mail is dropped without
	// reply, to avoid autoresponder loops.
	RouteSkipAutoOrBulk Route = "skip_auto_or_bulk"

	// RouteInternalReply: a staff reply routed to the thread's customer.
	RouteInternalReply Route = "internal_reply"

	// RouteReject: no valid thread reference; sender is pointed at the
	// website.
	RouteReject Route = "reject"

	// RouteForwardAccepted: a customer reply forwarded into the atelier
	// mailbox, with at most one acknowledgment per thread.
	RouteForwardAccepted Route = "forward_accepted"
)

// Outcome reports what the classifier decided for one message.
type Outcome struct {
	Route     Route
	Reason    string
	RequestID string
}

// ThreadStore is the thread-state lookup the classifier depends on.
type ThreadStore interface {
	Origin(ctx context.Context, id string) (*threadstore.Origin, error)
	SaveOrigin(ctx context.Context, id string, o threadstore.Origin) error
	Summary(ctx context.Context, id string) (*threadstore.Summary, error)
}

// AckGate is the idempotency marker store for acknowledgments.
type AckGate interface {
	Sent(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
	Enqueue(ctx context.Context, id string) error
}

// Options carries the routing configuration.
type Options struct {
	ForwardTo        string
	ForwardRejectsTo string
	ReplyTo          string
	NoReplyAddress   string
	InternalSenders  []string
	SendAck          bool
	SendReject       bool
	AckMode          string // "immediate" or "queue"
}

// Classifier routes inbound emails.
type Classifier struct {
	store      ThreadStore
	gate       AckGate
	dispatcher dispatch.Dispatcher
	opts       Options
}

// New creates a classifier.
func New(store ThreadStore, gate AckGate, dispatcher dispatch.Dispatcher, opts Options) *Classifier {
	return &Classifier{store: store, gate: gate, dispatcher: dispatcher, opts: opts}
}

// noReplyMarkers are From-header fragments that identify machine senders.
var noReplyMarkers = []string{"no-reply", "noreply", "mailer-daemon", "postmaster", "bounce."}

// resentHeaders indicate a message redistributed by a third party.
var resentHeaders = []string{"Resent-From", "Resent-To", "Resent-Date", "Resent-Message-ID", "Resent-Sender"}

// Process classifies one inbound message and performs its route's side
// effects. It never returns an error: there is no caller to notify, so all
// failure handling is about not sending the wrong email and logging enough
// to diagnose afterwards.
func (c *Classifier) Process(ctx context.Context, msg models.InboundMessage) Outcome {
	header, rawBody := mailparse.Split(string(msg.Raw))

	fromHeader := strings.TrimSpace(msg.From)
	if fromHeader == "" {
		fromHeader = mailparse.Header(header, "From")
	}
	if fromHeader == "" {
		return c.finish(Outcome{Route: RouteAbort, Reason: "missing_from"})
	}

	if c.isNoReplySink(msg.EnvelopeTo, header) {
		slog.Debug("dropping mail to no-reply sink")
		return c.finish(Outcome{Route: RouteSkipNoReplySink})
	}

	senderName, senderAddr, ok := validate.ParseFrom(fromHeader)
	if !ok {
		return c.finish(Outcome{Route: RouteAbort, Reason: "invalid_sender"})
	}

	if isAutoGenerated(header) || looksNoReply(fromHeader) {
		slog.Info("skipping auto-generated or bulk mail",
			"sender", dispatch.MaskEmail(senderAddr),
		)
		return c.finish(Outcome{Route: RouteSkipAutoOrBulk})
	}

	subject := mailparse.DecodeSubject(mailparse.Header(header, "Subject"))
	forwarded := isForwarded(header, subject)

	body := mailparse.DecodeBody(header, rawBody)
	replyText, replyTrimmed := replybody.Extract(body)
	id := requestid.FromSubjectOrBody(subject, body)

	email := models.ClassifiedEmail{
		Sender:         models.EmailAddress{Address: senderAddr, Name: senderName},
		Subject:        subject,
		Body:           body,
		ReplyBody:      replyText,
		ReplyTrimmed:   replyTrimmed,
		RequestID:      id,
		Forwarded:      forwarded,
		InternalSender: c.isInternal(senderAddr),
	}

	// External senders carrying a thread ID refresh the origin record so
	// the customer's latest reply-from address stays current. Internal
	// senders never touch it: a staff reply must not redefine whose
	// thread this is.
	if id != "" && !email.InternalSender {
		origin := threadstore.Origin{Email: senderAddr, Name: senderName}
		if err := c.store.SaveOrigin(ctx, id, origin); err != nil {
			slog.Warn("origin upsert failed",
				"request_id", id,
				"error", err,
			)
		}
	}

	switch {
	case email.InternalSender && id != "":
		return c.finish(c.routeInternalReply(ctx, email))
	case forwarded || id == "":
		return c.finish(c.routeReject(ctx, email, msg))
	default:
		return c.finish(c.routeForwardAccepted(ctx, email))
	}
}

// routeInternalReply sends a staff reply to the customer who owns the
// thread. An unknown or expired thread is unroutable: abort with a warning
// and never guess a recipient.
func (c *Classifier) routeInternalReply(ctx context.Context, email models.ClassifiedEmail) Outcome {
	origin, err := c.store.Origin(ctx, email.RequestID)
	if err != nil {
		slog.Error("origin lookup failed",
			"request_id", email.RequestID,
			"error", err,
		)
		return Outcome{Route: RouteAbort, Reason: "origin_lookup_failed", RequestID: email.RequestID}
	}
	if origin == nil {
		slog.Warn("internal reply to unknown or expired thread",
			"request_id", email.RequestID,
			"sender", dispatch.MaskEmail(email.Sender.Address),
		)
		return Outcome{Route: RouteAbort, Reason: "origin_missing", RequestID: email.RequestID}
	}

	out := dispatch.Message{
		To:      []string{origin.Email},
		Sender:  c.senderHeader(c.opts.ReplyTo),
		ReplyTo: c.opts.ReplyTo,
		Subject: requestid.TagSubject(email.Subject, email.RequestID),
		Text:    email.ReplyBody,
	}
	err = c.dispatcher.Send(ctx, out)
	metrics.CountSend("internal_reply", err)
	if err != nil {
		slog.Error("internal reply send failed",
			"request_id", email.RequestID,
			"to", dispatch.MaskEmail(origin.Email),
			"error", err,
		)
		return Outcome{Route: RouteInternalReply, Reason: "send_failed", RequestID: email.RequestID}
	}

	slog.Info("routed internal reply",
		"request_id", email.RequestID,
		"to", dispatch.MaskEmail(origin.Email),
	)
	return Outcome{Route: RouteInternalReply, RequestID: email.RequestID}
}

// routeReject points a sender with no valid thread reference at the
// website. The rejects-mailbox copy is best-effort and never blocks the
// reject reply.
func (c *Classifier) routeReject(ctx context.Context, email models.ClassifiedEmail, msg models.InboundMessage) Outcome {
	if c.opts.ForwardRejectsTo != "" {
		copyMsg := dispatch.Message{
			To:      []string{c.opts.ForwardRejectsTo},
			Sender:  c.senderHeader(c.opts.ReplyTo),
			Subject: "Rejected: " + email.Subject,
			Text:    string(msg.Raw),
		}
		if err := c.dispatcher.Send(ctx, copyMsg); err != nil {
			slog.Warn("rejects-mailbox copy failed", "error", err)
		}
	}

	if !c.opts.SendReject {
		slog.Info("reject reply disabled, dropping",
			"sender", dispatch.MaskEmail(email.Sender.Address),
		)
		return Outcome{Route: RouteReject, Reason: "reply_disabled"}
	}

	out := dispatch.Message{
		To:      []string{email.Sender.Address},
		Sender:  c.senderHeader(c.opts.NoReplyAddress),
		ReplyTo: c.opts.NoReplyAddress,
		Subject: dispatch.RejectSubject,
		Text:    dispatch.RejectText,
		HTML:    dispatch.RejectHTML,
		Headers: dispatch.AutoReplyHeaders(),
	}
	err := c.dispatcher.Send(ctx, out)
	metrics.CountSend("reject", err)
	if err != nil {
		slog.Error("reject reply send failed",
			"sender", dispatch.MaskEmail(email.Sender.Address),
			"error", err,
		)
		return Outcome{Route: RouteReject, Reason: "send_failed"}
	}

	slog.Info("routed reject",
		"sender", dispatch.MaskEmail(email.Sender.Address),
		"forwarded", email.Forwarded,
	)
	return Outcome{Route: RouteReject}
}

// routeForwardAccepted forwards a customer reply to the atelier mailbox,
// appending the stored original-inquiry snapshot, then sends at most one
// acknowledgment per thread through the gate.
func (c *Classifier) routeForwardAccepted(ctx context.Context, email models.ClassifiedEmail) Outcome {
	forwardBody := email.ReplyBody

	summary, err := c.store.Summary(ctx, email.RequestID)
	if err != nil {
		slog.Warn("summary lookup failed",
			"request_id", email.RequestID,
			"error", err,
		)
	}
	if summary != nil {
		forwardBody += "\n\n--- Original request ---\n" + summary.Body
	}

	subject := requestid.TagSubject(email.Subject, email.RequestID)
	out := dispatch.Message{
		To:      []string{c.opts.ForwardTo},
		Sender:  c.senderHeader(c.opts.ReplyTo),
		ReplyTo: c.opts.ReplyTo,
		Subject: subject,
		Text:    forwardBody,
		HTML: dispatch.BuildForwardHTML(dispatch.ForwardParams{
			Subject:     subject,
			Body:        forwardBody,
			SenderEmail: email.Sender.Address,
			SenderName:  email.Sender.Name,
			RequestID:   email.RequestID,
		}),
	}
	err = c.dispatcher.Send(ctx, out)
	metrics.CountSend("forward", err)
	if err != nil {
		// The transport redelivers; the gate was not marked, so the
		// retry sees the same decision.
		slog.Error("forward send failed",
			"request_id", email.RequestID,
			"error", err,
		)
		return Outcome{Route: RouteForwardAccepted, Reason: "send_failed", RequestID: email.RequestID}
	}

	slog.Info("forwarded accepted reply",
		"request_id", email.RequestID,
		"sender", dispatch.MaskEmail(email.Sender.Address),
		"trimmed", email.ReplyTrimmed,
	)

	if c.opts.SendAck {
		c.sendAck(ctx, email)
	}
	return Outcome{Route: RouteForwardAccepted, RequestID: email.RequestID}
}

// sendAck issues the standard acknowledgment unless one was already sent
// for this thread. Check-then-mark, not atomic; see the ackgate package.
func (c *Classifier) sendAck(ctx context.Context, email models.ClassifiedEmail) {
	if c.opts.AckMode == "queue" {
		if err := c.gate.Enqueue(ctx, email.RequestID); err != nil {
			slog.Warn("ack enqueue failed", "request_id", email.RequestID, "error", err)
		}
		return
	}

	sent, err := c.gate.Sent(ctx, email.RequestID)
	if err != nil {
		slog.Warn("ack gate check failed, skipping ack",
			"request_id", email.RequestID,
			"error", err,
		)
		return
	}
	if sent {
		slog.Debug("acknowledgment already sent", "request_id", email.RequestID)
		return
	}

	ack := dispatch.Message{
		To:      []string{email.Sender.Address},
		Sender:  c.senderHeader(c.opts.NoReplyAddress),
		ReplyTo: c.opts.NoReplyAddress,
		Subject: dispatch.AckSubject,
		Text:    dispatch.AckText,
		HTML:    dispatch.AckHTML,
		Headers: dispatch.AutoReplyHeaders(),
	}
	err = c.dispatcher.Send(ctx, ack)
	metrics.CountSend("ack", err)
	if err != nil {
		slog.Error("acknowledgment send failed",
			"request_id", email.RequestID,
			"error", err,
		)
		return
	}
	if err := c.gate.Mark(ctx, email.RequestID); err != nil {
		slog.Error("ack gate mark failed", "request_id", email.RequestID, "error", err)
	}
}

func (c *Classifier) finish(o Outcome) Outcome {
	metrics.InboundRoutes.WithLabelValues(string(o.Route)).Inc()
	return o
}

func (c *Classifier) isInternal(addr string) bool {
	addr = strings.ToLower(addr)
	for _, s := range c.opts.InternalSenders {
		if strings.ToLower(s) == addr {
			return true
		}
	}
	return false
}

// isNoReplySink reports whether the envelope recipient (or the To header
// when no envelope is available) is the dedicated no-reply sink.
func (c *Classifier) isNoReplySink(envelopeTo, header string) bool {
	if c.opts.NoReplyAddress == "" {
		return false
	}
	to := envelopeTo
	if strings.TrimSpace(to) == "" {
		to = mailparse.Header(header, "To")
	}
	if _, addr, ok := validate.ParseFrom(to); ok {
		return addr == strings.ToLower(c.opts.NoReplyAddress)
	}
	return strings.Contains(strings.ToLower(to), strings.ToLower(c.opts.NoReplyAddress))
}

// senderHeader renders the branded From header for an outbound address.
func (c *Classifier) senderHeader(addr string) string {
	return "Heerawalla <" + addr + ">"
}

// isAutoGenerated detects auto-replies and list/bulk mail from the
// standard envelope markers.
func isAutoGenerated(header string) bool {
	if strings.Contains(strings.ToLower(mailparse.Header(header, "Auto-Submitted")), "auto-") {
		return true
	}
	precedence := strings.ToLower(mailparse.Header(header, "Precedence"))
	for _, marker := range []string{"bulk", "list", "junk"} {
		if strings.Contains(precedence, marker) {
			return true
		}
	}
	return mailparse.Header(header, "List-Id") != ""
}

// looksNoReply detects machine senders from the From header text itself.
func looksNoReply(fromHeader string) bool {
	lower := strings.ToLower(fromHeader)
	for _, marker := range noReplyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isForwarded detects redistributed messages: any Resent-* header, or a
// subject starting with Fwd:/Fw:.
func isForwarded(header, subject string) bool {
	for _, h := range resentHeaders {
		if mailparse.Header(header, h) != "" {
			return true
		}
	}
	lower := strings.ToLower(strings.TrimSpace(subject))
	return strings.HasPrefix(lower, "fwd:") || strings.HasPrefix(lower, "fw:")
}
