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
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heerawalla/atelier-relay/internal/calendar"
	"github.com/heerawalla/atelier-relay/internal/catalog"
	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/metrics"
	"github.com/heerawalla/atelier-relay/internal/requestid"
	"github.com/heerawalla/atelier-relay/internal/validate"
)

// ServeAvailability lists open consultation slots for a day.
// GET /calendar/availability?date=2026-09-14
func (h *Handler) ServeAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Scheduler == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scheduling is not enabled"})
		return
	}

	loc, err := calendar.Location()
	if err != nil {
		slog.Error("timezone load failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temporary failure"})
		return
	}
	day, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	slots, err := h.Scheduler.Availability(r.Context(), day)
	if err != nil {
		slog.Error("availability lookup failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "calendar unavailable"})
		return
	}
	if slots == nil {
		slots = []calendar.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// bookRequest is the consultation booking payload.
type bookRequest struct {
	Start time.Time `json:"start"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
	Notes string    `json:"notes"`
}

// ServeBook places a consultation on the calendar and confirms by email.
func (h *Handler) ServeBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Scheduler == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scheduling is not enabled"})
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !validate.IsEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a valid email address is required"})
		return
	}
	if req.Start.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start time is required"})
		return
	}

	ip := clientIP(r)
	allowed, err := h.Gate.AllowSubmission(r.Context(), ip, h.Config.RateLimitPerHour)
	if err != nil {
		slog.Warn("rate limit check failed, allowing", "error", err)
	} else if !allowed {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, please try again later"})
		return
	}

	id := requestid.New()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	booking, err := h.Scheduler.Book(r.Context(), calendar.BookingRequest{
		Start:     req.Start,
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Phone:     validate.NormalizePhone(req.Phone),
		Notes:     strings.TrimSpace(req.Notes),
		RequestID: id,
	})
	if err != nil {
		slog.Info("booking declined", "request_id", id, "error", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": "that slot is no longer available"})
		return
	}

	slog.Info("consultation booked",
		"request_id", id,
		"start", booking.Slot.Start.Format(time.RFC3339),
		"email", dispatch.MaskEmail(email),
	)

	confirm := dispatch.Message{
		To:      []string{email},
		Sender:  "Heerawalla <" + h.Config.NoReplyAddress + ">",
		ReplyTo: h.Config.ReplyTo,
		Subject: dispatch.ConsultAckSubject,
		Text: "Your consultation is confirmed for " +
			booking.Slot.Start.Format("Monday, January 2 at 3:04 PM MST") +
			".\n\nIf you need to reschedule, reply to this email.\n\nHeerawalla Request ID: " + id + "\n",
		Headers: dispatch.AutoReplyHeaders(),
	}
	sendErr := h.Dispatcher.Send(r.Context(), confirm)
	metrics.CountSend("consult_ack", sendErr)
	if sendErr != nil {
		slog.Warn("booking confirmation failed", "request_id", id, "error", sendErr)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"request_id": id,
		"start":      booking.Slot.Start,
		"end":        booking.Slot.End,
	})
}

// ServeCatalog republishes one content feed.
// GET /catalog/{feed}
func (h *Handler) ServeCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Feeds == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "catalog is not enabled"})
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/catalog/")
	if name == "" || strings.Contains(name, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "feed name required"})
		return
	}

	records, err := h.Feeds.Feed(r.Context(), name)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownFeed) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown feed"})
			return
		}
		slog.Error("feed fetch failed", "feed", name, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "feed unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feed": name, "records": records})
}
