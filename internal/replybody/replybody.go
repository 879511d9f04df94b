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

// Package replybody extracts the newest human-authored content from a
// decoded reply body: everything above the first quoted/forwarded-content
// separator, minus trailing signature boilerplate.
//
// Customers reply inline or top-post from every mail client imaginable. The
// goal is to forward only what they actually wrote, never the accumulated
// thread, while never silently dropping a message that fails to match a
// known separator shape.
package replybody

import (
	"regexp"
	"strings"
)

// Placeholder is returned when a separator was found but nothing precedes it.
const Placeholder = "(No new message body provided.)"

// separator patterns, evaluated top-to-bottom per line; first match wins.
var separators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^On\s.+wrote:\s*$`),
	regexp.MustCompile(`(?i)^-{2,}\s*Original Message\s*-{2,}`),
	regexp.MustCompile(`(?i)^-{2,}\s*Forwarded message\s*-{2,}`),
	regexp.MustCompile(`(?i)^Begin forwarded message:`),
	regexp.MustCompile(`^\s*>+`),
	regexp.MustCompile(`^\|`),
}

// onOpener matches the first line of an "On ... wrote:" separator that a
// client has wrapped across up to two following lines.
var (
	onOpener   = regexp.MustCompile(`(?i)^On\s+\S`)
	wroteClose = regexp.MustCompile(`(?i)wrote:\s*$`)
)

// headerBlockStart matches the From: line of a classic 4-line quoted header
// block (From:/Sent:/To:/Subject:).
var (
	headerBlockStart  = regexp.MustCompile(`(?i)^\*{0,2}From:\s*\S`)
	headerBlockFollow = regexp.MustCompile(`(?i)^\*{0,2}(Sent|To|Subject|Date):\s*`)
)

// mimeArtifacts match residual lines that leak through imperfect multipart
// splitting.
var mimeArtifacts = regexp.MustCompile(`(?i)^(--[-=_A-Za-z0-9.]+-{0,2}\s*$|Content-Type:|Content-Transfer-Encoding:|Content-Disposition:|MIME-Version:)`)

// signatureFooter matches mobile-client footers treated as signature lines.
var signatureFooter = regexp.MustCompile(`(?i)^Sent (from|via|using)\s`)

// Extract returns the newest human-authored content of a decoded plain-text
// body and whether anything was trimmed away.
func Extract(body string) (text string, trimmed bool) {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	if strings.TrimSpace(normalized) == "" {
		return "", false
	}

	lines := strings.Split(normalized, "\n")
	cut := len(lines)
	separatorFound := false

scan:
	for i, line := range lines {
		for _, re := range separators {
			if re.MatchString(line) {
				cut = i
				separatorFound = true
				break scan
			}
		}
		// "On ... wrote:" wrapped across up to 2 following lines.
		if onOpener.MatchString(line) && wrappedWroteAt(lines, i) {
			cut = i
			separatorFound = true
			break
		}
		// Classic quoted header block: From: followed within the next few
		// lines by Sent:/To:/Subject:.
		if headerBlockStart.MatchString(line) && headerBlockFollows(lines, i) {
			cut = i
			separatorFound = true
			break
		}
	}

	kept := lines[:cut]

	// Drop residual MIME artifact lines.
	cleaned := kept[:0:0]
	for _, line := range kept {
		if mimeArtifacts.MatchString(strings.TrimSpace(line)) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	cleaned = trimSignature(cleaned)

	result := strings.TrimSpace(strings.Join(cleaned, "\n"))
	if result == "" {
		if separatorFound {
			return Placeholder, true
		}
		// Nothing matched and cleaning left nothing: the message was likely
		// all quote with no recognizable separator. Return it whole rather
		// than lose it.
		return strings.TrimSpace(normalized), false
	}

	return result, separatorFound || result != strings.TrimSpace(normalized)
}

// wrappedWroteAt reports whether lines[i] opens an "On ..." separator whose
// literal "wrote:" lands on one of the next two lines.
func wrappedWroteAt(lines []string, i int) bool {
	for j := i + 1; j <= i+2 && j < len(lines); j++ {
		if wroteClose.MatchString(lines[j]) {
			return true
		}
	}
	return false
}

// headerBlockFollows reports whether a From: line at i is followed within
// the next few lines by another quoted-header field.
func headerBlockFollows(lines []string, i int) bool {
	for j := i + 1; j <= i+4 && j < len(lines); j++ {
		if headerBlockFollow.MatchString(lines[j]) {
			return true
		}
	}
	return false
}

// trimSignature removes a trailing signature block: the conventional "--"
// delimiter and everything after it, plus mobile-client footers, walking
// backward past blank lines and stopping at the first real content line.
func trimSignature(lines []string) []string {
	end := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], " \t")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case line == "--":
			end = i
		case signatureFooter.MatchString(strings.TrimSpace(line)):
			end = i
		default:
			return lines[:end]
		}
	}
	return lines[:end]
}
