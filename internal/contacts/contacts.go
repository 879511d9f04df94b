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

// Package contacts syncs accepted submitters into the atelier's Google
// contact directory. Sync is best-effort everywhere it is called: a
// directory failure must never block an acknowledgment or a forward.
package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the production People API endpoint.
const DefaultBaseURL = "https://people.googleapis.com/v1"

// Contact is one directory entry candidate.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Client talks to the Google People API with an authenticated HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a directory client. httpClient must already inject
// credentials (see the gauth package).
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// Upsert creates the contact unless one with the same email already
// exists. Existing contacts are left untouched: the directory is a
// first-contact record, not a profile mirror.
func (c *Client) Upsert(ctx context.Context, contact Contact) error {
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	if email == "" {
		return fmt.Errorf("contacts: empty email")
	}

	exists, err := c.exists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		slog.Debug("contact already in directory", "email", email)
		return nil
	}
	return c.create(ctx, contact, email)
}

func (c *Client) exists(ctx context.Context, email string) (bool, error) {
	u := fmt.Sprintf("%s/people:searchContacts?query=%s&readMask=emailAddresses",
		c.baseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("search contacts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("people API returned HTTP %d searching %q", resp.StatusCode, email)
	}

	var result struct {
		Results []struct {
			Person struct {
				EmailAddresses []struct {
					Value string `json:"value"`
				} `json:"emailAddresses"`
			} `json:"person"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode search response: %w", err)
	}

	for _, r := range result.Results {
		for _, e := range r.Person.EmailAddresses {
			if strings.EqualFold(strings.TrimSpace(e.Value), email) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *Client) create(ctx context.Context, contact Contact, email string) error {
	type emailAddress struct {
		Value string `json:"value"`
	}
	type name struct {
		GivenName string `json:"givenName"`
	}
	type phoneNumber struct {
		Value string `json:"value"`
	}
	payload := struct {
		Names          []name         `json:"names,omitempty"`
		EmailAddresses []emailAddress `json:"emailAddresses"`
		PhoneNumbers   []phoneNumber  `json:"phoneNumbers,omitempty"`
	}{
		EmailAddresses: []emailAddress{{Value: email}},
	}
	if n := strings.TrimSpace(contact.Name); n != "" {
		payload.Names = []name{{GivenName: n}}
	}
	if p := strings.TrimSpace(contact.Phone); p != "" {
		payload.PhoneNumbers = []phoneNumber{{Value: p}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode contact: %w", err)
	}

	u := c.baseURL + "/people:createContact"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("people API returned HTTP %d creating contact: %s", resp.StatusCode, detail)
	}

	slog.Info("contact added to directory", "email", email)
	return nil
}
