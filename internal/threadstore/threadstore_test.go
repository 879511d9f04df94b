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

package threadstore

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateBody(t *testing.T) {
	t.Run("short body unchanged", func(t *testing.T) {
		body := "a short inquiry\nacross two lines"
		if got := truncateBody(body); got != body {
			t.Errorf("truncateBody = %q, want unchanged", got)
		}
	})

	t.Run("line cap", func(t *testing.T) {
		body := strings.Repeat("line\n", SummaryMaxLines+20)
		got := truncateBody(body)
		if !strings.HasSuffix(got, "\n...") {
			t.Errorf("truncated body missing marker: %q", got[len(got)-20:])
		}
		if n := strings.Count(strings.TrimSuffix(got, "\n..."), "\n"); n >= SummaryMaxLines {
			t.Errorf("kept %d newlines, want < %d", n, SummaryMaxLines)
		}
	})

	t.Run("char cap", func(t *testing.T) {
		body := strings.Repeat("x", SummaryMaxChars+500)
		got := truncateBody(body)
		if len(got) > SummaryMaxChars+len("\n...") {
			t.Errorf("truncated body is %d chars, cap is %d", len(got), SummaryMaxChars)
		}
		if !strings.HasSuffix(got, "...") {
			t.Error("truncated body missing marker")
		}
	})

	t.Run("char cap lands on rune boundary", func(t *testing.T) {
		// One leading ASCII byte shifts every two-byte rune off the cap,
		// so the raw cut would land mid-rune.
		body := "x" + strings.Repeat("é", SummaryMaxChars)
		got := truncateBody(body)
		if !utf8.ValidString(got) {
			t.Errorf("truncated body is not valid UTF-8: %q", got[len(got)-12:])
		}
		if len(got) > SummaryMaxChars+len("\n...") {
			t.Errorf("truncated body is %d chars, cap is %d", len(got), SummaryMaxChars)
		}
	})
}
