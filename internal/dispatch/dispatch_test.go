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

package dispatch

import (
	"strings"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"maya@example.com", "m***@example.com"},
		{"a@b.co", "a***@b.co"},
		{"not-an-email", "***"},
		{"@nolocal.com", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := MaskEmail(tt.in); got != tt.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAutoReplyHeaders(t *testing.T) {
	h := AutoReplyHeaders()
	if h["Auto-Submitted"] != "auto-replied" {
		t.Errorf("Auto-Submitted = %q", h["Auto-Submitted"])
	}
	if h["X-Auto-Response-Suppress"] != "All" {
		t.Errorf("X-Auto-Response-Suppress = %q", h["X-Auto-Response-Suppress"])
	}
}

func TestBuildForwardSubject(t *testing.T) {
	if got := BuildForwardSubject("My ring", "AB12CD"); got != "My ring [HW-REQ:AB12CD]" {
		t.Errorf("subject = %q", got)
	}
	// Already tagged subjects are left alone.
	if got := BuildForwardSubject("Re: My ring [HW-REQ:AB12CD]", "AB12CD"); got != "Re: My ring [HW-REQ:AB12CD]" {
		t.Errorf("subject = %q", got)
	}
}

func TestBuildForwardHTML(t *testing.T) {
	html := BuildForwardHTML(ForwardParams{
		Subject:     "Re: Ring <order>",
		Body:        "Platinum please & thank you.\nSecond line.",
		SenderEmail: "maya@example.com",
		SenderName:  "Maya Rao",
		RequestID:   "AB12CD",
	})

	if !strings.Contains(html, "Maya Rao &lt;maya@example.com&gt;") {
		t.Errorf("sender not escaped and rendered: %s", html)
	}
	if !strings.Contains(html, "Heerawalla Request ID: AB12CD") {
		t.Error("request id label missing")
	}
	if !strings.Contains(html, "Platinum please &amp; thank you.<br>") {
		t.Error("body not escaped with line breaks")
	}
	if strings.Contains(html, "<order>") {
		t.Error("subject markup not escaped")
	}
}
