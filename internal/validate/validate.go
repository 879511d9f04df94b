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

// Package validate checks sender addresses and submission fields. The MX
// lookup carries a short hard deadline; a slow resolver should delay a
// submission, never wedge it.
package validate

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	phoneDigits  = regexp.MustCompile(`[^0-9+]`)
)

// IsEmail reports whether s has the basic shape of an email address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ParseFrom extracts the display name and address from a From header value,
// handling both `"Name" <addr>` and bare-address forms. Returns ok=false
// when no plausible address can be recovered.
func ParseFrom(from string) (name, addr string, ok bool) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", "", false
	}
	if parsed, err := mail.ParseAddress(from); err == nil {
		if !IsEmail(parsed.Address) {
			return "", "", false
		}
		return strings.TrimSpace(parsed.Name), strings.ToLower(parsed.Address), true
	}
	// Salvage a bare address out of malformed header text.
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.Index(from[start:], ">"); end > 0 {
			candidate := from[start+1 : start+end]
			if IsEmail(candidate) {
				return strings.Trim(strings.TrimSpace(from[:start]), `"`), strings.ToLower(candidate), true
			}
		}
		return "", "", false
	}
	if IsEmail(from) {
		return "", strings.ToLower(from), true
	}
	return "", "", false
}

// NormalizePhone strips everything but digits and a leading plus.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	cleaned := phoneDigits.ReplaceAllString(s, "")
	if i := strings.LastIndex(cleaned, "+"); i > 0 {
		cleaned = strings.ReplaceAll(cleaned, "+", "")
		cleaned = "+" + cleaned
	}
	return cleaned
}

// IsPhone reports whether a normalized phone number is plausible.
func IsPhone(s string) bool {
	digits := strings.TrimPrefix(NormalizePhone(s), "+")
	return len(digits) >= 7 && len(digits) <= 15
}

// mxTimeout is the hard deadline on a domain validation query.
const mxTimeout = 5 * time.Second

// DomainChecker validates that an email domain can receive mail.
type DomainChecker struct {
	client  *dns.Client
	servers []string
}

// NewDomainChecker builds a checker over the system resolver configuration,
// falling back to well-known public resolvers when none can be read.
func NewDomainChecker() *DomainChecker {
	servers := []string{"1.1.1.1:53", "8.8.8.8:53"}
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		servers = nil
		for _, s := range conf.Servers {
			servers = append(servers, s+":"+conf.Port)
		}
	}
	return &DomainChecker{
		client:  &dns.Client{Timeout: mxTimeout},
		servers: servers,
	}
}

// HasMX reports whether the domain publishes at least one MX record. On
// resolver failure it returns true: an unreachable resolver must not reject
// legitimate customers.
func (c *DomainChecker) HasMX(ctx context.Context, domain string) bool {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	for _, server := range c.servers {
		reply, _, err := c.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			continue
		}
		if reply.Rcode == dns.RcodeNameError {
			return false
		}
		if reply.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range reply.Answer {
			if _, isMX := rr.(*dns.MX); isMX {
				return true
			}
		}
		return false
	}
	return true
}

// Domain returns the domain part of an address.
func Domain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", fmt.Errorf("no domain in address %q", email)
	}
	return email[at+1:], nil
}
