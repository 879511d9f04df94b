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

package validate

import "testing"

func TestIsEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"customer@example.com", true},
		{"a.b+tag@sub.example.co", true},
		{"no-at-sign", false},
		{"spaces in@example.com", false},
		{"@example.com", false},
		{"user@", false},
		{"user@tld.x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsEmail(tt.email); got != tt.want {
			t.Errorf("IsEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestParseFrom(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		wantName string
		wantAddr string
		wantOK   bool
	}{
		{
			name:     "display name form",
			from:     `"Jane Doe" <Jane@Example.com>`,
			wantName: "Jane Doe",
			wantAddr: "jane@example.com",
			wantOK:   true,
		},
		{
			name:     "bare address",
			from:     "customer@example.com",
			wantAddr: "customer@example.com",
			wantOK:   true,
		},
		{
			name:     "unquoted name with comma",
			from:     "Doe, Jane <jane@example.com>",
			wantName: "Doe, Jane",
			wantAddr: "jane@example.com",
			wantOK:   true,
		},
		{
			name:   "empty",
			from:   "",
			wantOK: false,
		},
		{
			name:   "garbage",
			from:   "not an address at all",
			wantOK: false,
		},
		{
			name:   "angle brackets no address",
			from:   "Someone <>",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, addr, ok := ParseFrom(tt.from)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if addr != tt.wantAddr {
				t.Errorf("addr = %q, want %q", addr, tt.wantAddr)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555.123.4567", "5551234567"},
		{"  +44 20 7946 0958 ", "+442079460958"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPhone(t *testing.T) {
	if !IsPhone("+15551234567") {
		t.Error("valid number rejected")
	}
	if IsPhone("12345") {
		t.Error("too-short number accepted")
	}
	if IsPhone("+123456789012345678") {
		t.Error("too-long number accepted")
	}
}

func TestDomain(t *testing.T) {
	d, err := Domain("user@example.com")
	if err != nil || d != "example.com" {
		t.Errorf("Domain = (%q, %v), want (example.com, nil)", d, err)
	}
	if _, err := Domain("no-at"); err == nil {
		t.Error("Domain accepted address without @")
	}
	if _, err := Domain("user@"); err == nil {
		t.Error("Domain accepted empty domain")
	}
}
