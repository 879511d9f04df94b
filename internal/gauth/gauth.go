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

// Package gauth provides an authenticated HTTP client for the Google APIs
// used by the atelier: Contacts for directory sync and Calendar for
// consultation booking. Authentication is the refresh-token grant against
// a single pre-authorised account; tokens are cached and renewed by the
// oauth2 token source.
package gauth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Credentials holds the offline-access grant for the atelier's Google
// account.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Client wraps a token source bound to the atelier account.
type Client struct {
	source oauth2.TokenSource
	http   *http.Client
}

// New builds a client from a refresh-token grant. The context governs
// token refresh requests for the lifetime of the client.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("gauth: client id, secret, and refresh token are all required")
	}
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	return &Client{
		source: source,
		http:   oauth2.NewClient(ctx, source),
	}, nil
}

// AccessToken returns a currently valid access token, refreshing if the
// cached one is expired or near expiry.
func (c *Client) AccessToken() (string, error) {
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("gauth: token refresh: %w", err)
	}
	return tok.AccessToken, nil
}

// HTTP returns an http.Client that injects the bearer token on every
// request.
func (c *Client) HTTP() *http.Client {
	return c.http
}
