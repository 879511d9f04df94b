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

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/heerawalla/atelier-relay/internal/contacts"
	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/metrics"
	"github.com/heerawalla/atelier-relay/internal/models"
	"github.com/heerawalla/atelier-relay/internal/requestid"
	"github.com/heerawalla/atelier-relay/internal/threadstore"
	"github.com/heerawalla/atelier-relay/internal/validate"
)

// submitRequest is the website's form payload.
type submitRequest struct {
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	PhonePreferred bool   `json:"phone_preferred"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	Source         string `json:"source"`
	PageURL        string `json:"page_url"`
	UTMSource      string `json:"utm_source"`
	UTMMedium      string `json:"utm_medium"`
	UTMCampaign    string `json:"utm_campaign"`
	UTMTerm        string `json:"utm_term"`
	UTMContent     string `json:"utm_content"`
	Referrer       string `json:"referrer"`
}

// ServeSubmit accepts a website submission: mint a request ID, seed the
// thread state, forward to the atelier, and acknowledge the submitter.
// Everything after the forward is best-effort.
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if msg := h.validateSubmit(r, &req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	ip := clientIP(r)
	allowed, err := h.Gate.AllowSubmission(r.Context(), ip, h.Config.RateLimitPerHour)
	if err != nil {
		slog.Warn("rate limit check failed, allowing", "error", err)
	} else if !allowed {
		slog.Info("submission rate limited", "ip", ip)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many submissions, please try again later"})
		return
	}

	id := requestid.New()
	sub := models.Submission{
		RequestID:      id,
		Kind:           req.Kind,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          validate.NormalizePhone(req.Phone),
		PhonePreferred: req.PhonePreferred,
		Subject:        strings.TrimSpace(req.Subject),
		Message:        strings.TrimSpace(req.Message),
		Source:         req.Source,
		PageURL:        req.PageURL,
		UTMSource:      req.UTMSource,
		UTMMedium:      req.UTMMedium,
		UTMCampaign:    req.UTMCampaign,
		UTMTerm:        req.UTMTerm,
		UTMContent:     req.UTMContent,
		Referrer:       req.Referrer,
	}

	// Thread state first: if this fails, later reply routing would be
	// blind, so it is the one hard failure in the flow.
	origin := threadstore.Origin{Email: sub.Email, Name: sub.Name}
	if err := h.Store.SaveOrigin(r.Context(), id, origin); err != nil {
		slog.Error("origin save failed", "request_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temporary failure, please try again"})
		return
	}
	sum := threadstore.Summary{
		Subject: sub.Subject,
		Body:    sub.Message,
		Email:   sub.Email,
		Name:    sub.Name,
	}
	if err := h.Store.SaveSummary(r.Context(), id, sum); err != nil {
		slog.Warn("summary save failed", "request_id", id, "error", err)
	}

	metrics.Submissions.WithLabelValues(sub.Kind).Inc()
	slog.Info("submission accepted",
		"request_id", id,
		"kind", sub.Kind,
		"email", dispatch.MaskEmail(sub.Email),
	)

	if h.Config.SendSubmit {
		h.forwardSubmission(r, sub)
	}
	h.ackSubmission(r, sub)

	// Bookkeeping and directory sync never block the response.
	if h.Log != nil {
		if err := h.Log.Insert(r.Context(), sub); err != nil {
			slog.Warn("submission log insert failed", "request_id", id, "error", err)
		}
	}
	if h.Directory != nil {
		if err := h.Directory.Upsert(r.Context(), contacts.Contact{
			Name:  sub.Name,
			Email: sub.Email,
			Phone: sub.Phone,
		}); err != nil {
			slog.Warn("directory sync failed", "request_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request_id": id})
}

// validateSubmit checks the form fields and returns a user-facing error
// message, or "" when the submission is acceptable.
func (h *Handler) validateSubmit(r *http.Request, req *submitRequest) string {
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Kind == "" {
		req.Kind = "contact"
	}
	switch req.Kind {
	case "contact", "order", "quote":
	default:
		return "unknown submission kind"
	}

	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(req.Message) == "" {
		return "message is required"
	}
	if !validate.IsEmail(req.Email) {
		return "a valid email address is required"
	}
	if req.Phone != "" && !validate.IsPhone(req.Phone) {
		return "phone number looks invalid"
	}

	if h.Verifier != nil {
		domain, err := validate.Domain(req.Email)
		if err != nil || !h.Verifier.HasMX(r.Context(), domain) {
			return "email domain cannot receive mail"
		}
	}
	return ""
}

// forwardSubmission sends the submission to the atelier mailbox.
func (h *Handler) forwardSubmission(r *http.Request, sub models.Submission) {
	subject := sub.Subject
	if subject == "" {
		subject = "New " + sub.Kind + " request"
	}
	subject = requestid.TagSubject(subject, sub.RequestID)

	var b strings.Builder
	b.WriteString("Name: " + sub.Name + "\n")
	b.WriteString("Email: " + sub.Email + "\n")
	if sub.Phone != "" {
		b.WriteString("Phone: " + sub.Phone)
		if sub.PhonePreferred {
			b.WriteString(" (preferred)")
		}
		b.WriteString("\n")
	}
	if sub.PageURL != "" {
		b.WriteString("Page: " + sub.PageURL + "\n")
	}
	if sub.UTMSource != "" {
		b.WriteString("Campaign: " + sub.UTMSource + " / " + sub.UTMMedium + " / " + sub.UTMCampaign + "\n")
	}
	b.WriteString("\n" + sub.Message + "\n")

	msg := dispatch.Message{
		To:      []string{h.Config.ForwardTo},
		Sender:  "Heerawalla <" + h.Config.ReplyTo + ">",
		ReplyTo: h.Config.ReplyTo,
		Subject: subject,
		Text:    b.String(),
		HTML: dispatch.BuildForwardHTML(dispatch.ForwardParams{
			Subject:     subject,
			Body:        b.String(),
			SenderEmail: sub.Email,
			SenderName:  sub.Name,
			RequestID:   sub.RequestID,
		}),
	}
	err := h.Dispatcher.Send(r.Context(), msg)
	metrics.CountSend("submit_forward", err)
	if err != nil {
		slog.Error("submission forward failed", "request_id", sub.RequestID, "error", err)
	}
}

// ackSubmission acknowledges the submitter through the gate.
func (h *Handler) ackSubmission(r *http.Request, sub models.Submission) {
	if !h.Config.SendAck {
		return
	}
	if h.Config.AckMode == "queue" {
		if err := h.Gate.Enqueue(r.Context(), sub.RequestID); err != nil {
			slog.Warn("ack enqueue failed", "request_id", sub.RequestID, "error", err)
		}
		return
	}

	sent, err := h.Gate.Sent(r.Context(), sub.RequestID)
	if err != nil {
		slog.Warn("ack gate check failed, skipping ack", "request_id", sub.RequestID, "error", err)
		return
	}
	if sent {
		return
	}

	subject, text, html := dispatch.AckSubject, dispatch.AckText, dispatch.AckHTML
	if sub.Kind == "contact" {
		subject, text, html = dispatch.ContactAckSubject, dispatch.ContactAckText, dispatch.ContactAckHTML
	}
	msg := dispatch.Message{
		To:      []string{sub.Email},
		Sender:  "Heerawalla <" + h.Config.NoReplyAddress + ">",
		ReplyTo: h.Config.NoReplyAddress,
		Subject: subject,
		Text:    text,
		HTML:    html,
		Headers: dispatch.AutoReplyHeaders(),
	}
	err = h.Dispatcher.Send(r.Context(), msg)
	metrics.CountSend("ack", err)
	if err != nil {
		slog.Error("submission ack failed", "request_id", sub.RequestID, "error", err)
		return
	}
	if err := h.Gate.Mark(r.Context(), sub.RequestID); err != nil {
		slog.Error("ack gate mark failed", "request_id", sub.RequestID, "error", err)
	}
}

// subscribeRequest is the mailing-list form payload.
type subscribeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ServeSubscribe adds an address to the mailing list and welcomes it.
func (h *Handler) ServeSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if !validate.IsEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a valid email address is required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// An unsubscribed address stays unsubscribed; report success without
	// re-adding so the form can't be used to override an opt-out.
	if unsubbed, err := h.Gate.IsUnsubscribed(r.Context(), email); err != nil {
		slog.Warn("unsubscribe check failed", "error", err)
	} else if unsubbed {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if err := h.Gate.SetSubscribed(r.Context(), email); err != nil {
		slog.Error("subscribe failed", "email", dispatch.MaskEmail(email), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temporary failure, please try again"})
		return
	}

	msg := dispatch.Message{
		To:      []string{email},
		Sender:  "Heerawalla <" + h.Config.NoReplyAddress + ">",
		ReplyTo: h.Config.NoReplyAddress,
		Subject: dispatch.SubscribeAckSubject,
		Text:    dispatch.SubscribeAckText,
		HTML:    dispatch.SubscribeAckHTML,
		Headers: dispatch.AutoReplyHeaders(),
	}
	err := h.Dispatcher.Send(r.Context(), msg)
	metrics.CountSend("subscribe_ack", err)
	if err != nil {
		slog.Warn("subscribe welcome failed", "email", dispatch.MaskEmail(email), "error", err)
	}

	if h.Directory != nil {
		if err := h.Directory.Upsert(r.Context(), contacts.Contact{Name: req.Name, Email: email}); err != nil {
			slog.Warn("directory sync failed", "error", err)
		}
	}

	slog.Info("subscribed", "email", dispatch.MaskEmail(email))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ServeUnsubscribe records an opt-out. Always succeeds from the caller's
// point of view.
func (h *Handler) ServeUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if !validate.IsEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a valid email address is required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.Gate.SetUnsubscribed(r.Context(), email); err != nil {
		slog.Error("unsubscribe failed", "email", dispatch.MaskEmail(email), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temporary failure, please try again"})
		return
	}

	slog.Info("unsubscribed", "email", dispatch.MaskEmail(email))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
