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

// Package models defines the data structures shared across the relay service.
package models

// EmailAddress represents a sender or recipient with an address and optional
// display name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// InboundMessage is one raw email transfer unit as delivered by the inbound
// mail source: the envelope recipient, the From display string, and the
// undifferentiated headers+body blob.
type InboundMessage struct {
	EnvelopeTo string `json:"envelope_to"`
	From       string `json:"from"`
	Raw        []byte `json:"raw"`
}

// ClassifiedEmail is the per-message decision object produced by the
// classifier. It exists only for the duration of processing one inbound
// message and is never persisted.
type ClassifiedEmail struct {
	Sender         EmailAddress
	Subject        string
	Body           string
	ReplyBody      string
	ReplyTrimmed   bool
	RequestID      string
	Forwarded      bool
	InternalSender bool
}

// Submission is one accepted website submission (contact form, order, or
// quote request) headed for the submission log and the forward pipeline.
type Submission struct {
	RequestID      string `json:"request_id"`
	Kind           string `json:"kind"` // "contact", "order", "quote"
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	PhonePreferred bool   `json:"phone_preferred,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Message        string `json:"message"`
	Source         string `json:"source,omitempty"`
	PageURL        string `json:"page_url,omitempty"`
	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	UTMTerm        string `json:"utm_term,omitempty"`
	UTMContent     string `json:"utm_content,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
}
