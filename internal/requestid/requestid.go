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

// Package requestid mints and extracts the opaque per-inquiry tokens that
// thread a customer conversation across separate emails. A request ID
// round-trips through two textual encodings: the machine tag "HW-REQ:TOKEN"
// embedded in subject lines, and the human-readable
// "Heerawalla Request ID: TOKEN" line embedded in bodies.
package requestid

import (
	"crypto/rand"
	"regexp"
	"strings"
)

const (
	// Prefix is the machine tag that precedes a token in a subject line.
	Prefix = "HW-REQ:"

	// Label is the human-readable form embedded in email bodies.
	Label = "Heerawalla Request ID:"

	// alphabet excludes 0, 1, I and O to keep IDs unambiguous when read
	// aloud or retyped by a customer.
	alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// Length of a minted token.
	Length = 6
)

var (
	prefixPattern = regexp.MustCompile(`(?i)HW-REQ:([A-Z0-9]+)`)
	labelPattern  = regexp.MustCompile(`(?i)Heerawalla\s+Request\s+ID:\s*([A-Z0-9]+)`)
	replyPrefixes = regexp.MustCompile(`(?i)^(re|fwd?|aw):\s*`)
)

// New mints a fresh request ID. IDs are never reused; collisions across the
// 180-day retention window are vanishingly unlikely at this volume
// (32^6 ≈ 1.07e9 tokens).
func New() string {
	buf := make([]byte, Length)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// Normalize uppercases a token for comparisons and storage keys.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// FromText scans arbitrary text for an embedded request ID. The machine tag
// takes precedence over the human-readable label; the first match wins.
// Returns the normalized token, or "" if neither encoding is present.
func FromText(text string) string {
	if m := prefixPattern.FindStringSubmatch(text); m != nil {
		return Normalize(m[1])
	}
	if m := labelPattern.FindStringSubmatch(text); m != nil {
		return Normalize(m[1])
	}
	return ""
}

// FromSubjectOrBody applies FromText to the subject first, then the body.
// Subject is authoritative when both carry a token: the subject tag is the
// one we emitted ourselves, while body text can be quoted from anywhere.
func FromSubjectOrBody(subject, body string) string {
	if id := FromText(subject); id != "" {
		return id
	}
	return FromText(body)
}

// TagSubject appends the bracketed machine tag to a subject line unless the
// subject already carries a token.
func TagSubject(subject, id string) string {
	subject = strings.TrimSpace(subject)
	if FromText(subject) != "" {
		return subject
	}
	if subject == "" {
		return "[" + Prefix + Normalize(id) + "]"
	}
	return subject + " [" + Prefix + Normalize(id) + "]"
}

// StripReplyPrefixes removes any number of leading Re:/Fwd:/Fw:/Aw: tokens,
// case-insensitively, so "Re: Re: Fwd: X" compares equal to "X".
func StripReplyPrefixes(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		next := replyPrefixes.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = strings.TrimSpace(next)
	}
}
