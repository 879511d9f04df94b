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

package requestid

import (
	"strings"
	"testing"
)

func TestFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "machine tag in subject",
			text: "Re: Custom ring [HW-REQ:AB12CD]",
			want: "AB12CD",
		},
		{
			name: "lowercase tag is normalized",
			text: "re: custom ring [hw-req:ab12cd]",
			want: "AB12CD",
		},
		{
			name: "human readable label",
			text: "Heerawalla Request ID: xy9z88",
			want: "XY9Z88",
		},
		{
			name: "label without trailing space",
			text: "Heerawalla Request ID:QR7T2K",
			want: "QR7T2K",
		},
		{
			name: "tag wins over label",
			text: "HW-REQ:AAAAAA\nHeerawalla Request ID: BBBBBB",
			want: "AAAAAA",
		},
		{
			name: "no id present",
			text: "no id here",
			want: "",
		},
		{
			name: "empty text",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromText(tt.text); got != tt.want {
				t.Errorf("FromText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFromSubjectOrBody(t *testing.T) {
	// Subject is authoritative when both differ.
	got := FromSubjectOrBody("Hello [HW-REQ:SUBJ22]", "Heerawalla Request ID: BODY33")
	if got != "SUBJ22" {
		t.Errorf("subject precedence: got %q, want SUBJ22", got)
	}

	got = FromSubjectOrBody("no tag here", "Heerawalla Request ID: BODY33")
	if got != "BODY33" {
		t.Errorf("body fallback: got %q, want BODY33", got)
	}

	if got = FromSubjectOrBody("nothing", "nothing"); got != "" {
		t.Errorf("no match: got %q, want empty", got)
	}
}

func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != Length {
			t.Fatalf("New() = %q, want %d characters", id, Length)
		}
		for _, r := range id {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("New() = %q contains %q outside the alphabet", id, r)
			}
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Errorf("only %d distinct IDs in 100 draws", len(seen))
	}
}

func TestTagSubject(t *testing.T) {
	tests := []struct {
		subject string
		id      string
		want    string
	}{
		{"My ring", "AB12CD", "My ring [HW-REQ:AB12CD]"},
		{"Re: My ring [HW-REQ:AB12CD]", "ZZZZZZ", "Re: My ring [HW-REQ:AB12CD]"},
		{"", "AB12CD", "[HW-REQ:AB12CD]"},
		{"Note", "ab12cd", "Note [HW-REQ:AB12CD]"},
	}
	for _, tt := range tests {
		if got := TagSubject(tt.subject, tt.id); got != tt.want {
			t.Errorf("TagSubject(%q, %q) = %q, want %q", tt.subject, tt.id, got, tt.want)
		}
	}
}

func TestStripReplyPrefixes(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"Re: Hello", "Hello"},
		{"Re: Re: Fwd: Hello", "Hello"},
		{"FW: aw: hello", "hello"},
		{"Hello", "Hello"},
		{"  Re:   spaced  ", "spaced"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripReplyPrefixes(tt.subject); got != tt.want {
			t.Errorf("StripReplyPrefixes(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}
