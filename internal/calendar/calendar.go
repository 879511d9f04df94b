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

// Package calendar offers consultation slots on the atelier's Google
// Calendar. Slots are fixed half-hour windows inside the atelier's
// consultation hours, offered only when the calendar is free around them
// and the slot starts far enough in the future to prepare for.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Calendar API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Consultation scheduling parameters. All times are interpreted in the
// atelier's local zone.
const (
	SlotDuration = 30 * time.Minute
	// Buffer keeps half an hour clear on both sides of existing bookings.
	Buffer = 30 * time.Minute
	// LeadTime is the minimum notice before a slot can be booked.
	LeadTime = 24 * time.Hour

	Timezone = "America/Chicago"
)

// window is one block of consultation hours, in local wall-clock hours.
type window struct {
	startHour int
	endHour   int
}

var consultationWindows = []window{
	{startHour: 10, endHour: 12},
	{startHour: 15, endHour: 17},
}

// Slot is one bookable consultation interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Interval is one busy period on the calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// BookingRequest describes a consultation to place on the calendar.
type BookingRequest struct {
	Start     time.Time
	Name      string
	Email     string
	Phone     string
	Notes     string
	RequestID string
}

// Booking is a confirmed calendar event.
type Booking struct {
	EventID string
	Slot    Slot
}

// Location returns the atelier's time zone.
func Location() (*time.Location, error) {
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", Timezone, err)
	}
	return loc, nil
}

// SlotsForDay returns every consultation slot on the given day, whether
// booked or not. The day is taken in loc's wall-clock.
func SlotsForDay(day time.Time, loc *time.Location) []Slot {
	var slots []Slot
	for _, w := range consultationWindows {
		start := time.Date(day.Year(), day.Month(), day.Day(), w.startHour, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), w.endHour, 0, 0, 0, loc)
		for s := start; s.Add(SlotDuration).Before(end) || s.Add(SlotDuration).Equal(end); s = s.Add(SlotDuration) {
			slots = append(slots, Slot{Start: s, End: s.Add(SlotDuration)})
		}
	}
	return slots
}

// FilterAvailable drops slots that start before the lead time or collide
// with a busy interval widened by the buffer.
func FilterAvailable(slots []Slot, busy []Interval, now time.Time) []Slot {
	earliest := now.Add(LeadTime)
	var out []Slot
	for _, s := range slots {
		if s.Start.Before(earliest) {
			continue
		}
		if conflicts(s, busy) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func conflicts(s Slot, busy []Interval) bool {
	for _, b := range busy {
		padStart := b.Start.Add(-Buffer)
		padEnd := b.End.Add(Buffer)
		if s.Start.Before(padEnd) && padStart.Before(s.End) {
			return true
		}
	}
	return false
}

// Client books consultations against the Calendar API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	loc        *time.Location
	now        func() time.Time
}

// NewClient creates a calendar client. httpClient must already inject
// credentials (see the gauth package).
func NewClient(httpClient *http.Client, baseURL, calendarID string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	loc, err := Location()
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		calendarID: calendarID,
		loc:        loc,
		now:        time.Now,
	}, nil
}

// Availability returns the open consultation slots on the given day.
func (c *Client) Availability(ctx context.Context, day time.Time) ([]Slot, error) {
	slots := SlotsForDay(day.In(c.loc), c.loc)
	if len(slots) == 0 {
		return nil, nil
	}

	busy, err := c.freeBusy(ctx, slots[0].Start.Add(-Buffer), slots[len(slots)-1].End.Add(Buffer))
	if err != nil {
		return nil, err
	}
	return FilterAvailable(slots, busy, c.now()), nil
}

// Book places a consultation event if the requested slot is still open.
func (c *Client) Book(ctx context.Context, req BookingRequest) (*Booking, error) {
	start := req.Start.In(c.loc)
	slot := Slot{Start: start, End: start.Add(SlotDuration)}

	open, err := c.Availability(ctx, start)
	if err != nil {
		return nil, err
	}
	found := false
	for _, s := range open {
		if s.Start.Equal(slot.Start) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("slot %s is not available", slot.Start.Format(time.RFC3339))
	}

	eventID, err := c.insertEvent(ctx, slot, req)
	if err != nil {
		return nil, err
	}
	return &Booking{EventID: eventID, Slot: slot}, nil
}

// freeBusy queries the calendar's busy intervals in [from, to).
func (c *Client) freeBusy(ctx context.Context, from, to time.Time) ([]Interval, error) {
	payload := map[string]any{
		"timeMin":  from.Format(time.RFC3339),
		"timeMax":  to.Format(time.RFC3339),
		"timeZone": Timezone,
		"items":    []map[string]string{{"id": c.calendarID}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode freebusy query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/freeBusy", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar API returned HTTP %d for freebusy", resp.StatusCode)
	}

	var result struct {
		Calendars map[string]struct {
			Busy []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"busy"`
		} `json:"calendars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode freebusy response: %w", err)
	}

	var busy []Interval
	for _, b := range result.Calendars[c.calendarID].Busy {
		busy = append(busy, Interval{Start: b.Start, End: b.End})
	}
	return busy, nil
}

// insertEvent creates the consultation event and returns its ID.
func (c *Client) insertEvent(ctx context.Context, slot Slot, req BookingRequest) (string, error) {
	description := req.Notes
	if req.Phone != "" {
		description = "Phone: " + req.Phone + "\n" + description
	}
	payload := map[string]any{
		"summary":     fmt.Sprintf("Consultation - %s [HW-REQ:%s]", req.Name, req.RequestID),
		"description": description,
		"start":       map[string]string{"dateTime": slot.Start.Format(time.RFC3339), "timeZone": Timezone},
		"end":         map[string]string{"dateTime": slot.End.Format(time.RFC3339), "timeZone": Timezone},
		"attendees":   []map[string]string{{"email": req.Email, "displayName": req.Name}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	u := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, c.calendarID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("calendar API returned HTTP %d creating event: %s", resp.StatusCode, detail)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode event response: %w", err)
	}
	return created.ID, nil
}
