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

// Package mailparse decodes one raw email transfer unit into plain text.
//
// The decoder is deliberately best-effort: real senders omit encoding
// headers, mislabel charsets, and produce broken base64. Correctness of
// delivery outranks purity of decoding, so every failure path degrades to
// returning the text we have rather than an error.
package mailparse

import (
	"encoding/base64"
	"html"
	"io"
	"mime"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// Split divides a raw transfer unit at the first blank-line boundary into a
// header block and a body. Both bare-LF and CRLF-terminated header blocks are
// supported. If no boundary exists the whole input is treated as body.
func Split(raw string) (header, body string) {
	// A message may mix conventions (bare-LF headers, CRLF body); the cut
	// goes at whichever blank line appears first, not at a preferred
	// separator.
	idx, sepLen := -1, 0
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if i := strings.Index(raw, sep); i >= 0 && (idx < 0 || i < idx) {
			idx, sepLen = i, len(sep)
		}
	}
	if idx < 0 {
		return "", raw
	}
	return raw[:idx], raw[idx+sepLen:]
}

// Header returns the value of the named header from a header block, with
// continuation lines unfolded and the name matched case-insensitively.
// Returns "" if the header is absent.
func Header(headerBlock, name string) string {
	lines := strings.Split(normalizeNewlines(headerBlock), "\n")
	prefix := strings.ToLower(name) + ":"
	for i, line := range lines {
		if !strings.HasPrefix(strings.ToLower(line), prefix) {
			continue
		}
		value := strings.TrimSpace(line[len(prefix):])
		// Unfold: lines beginning with whitespace continue the value.
		for j := i + 1; j < len(lines); j++ {
			if len(lines[j]) == 0 || (lines[j][0] != ' ' && lines[j][0] != '\t') {
				break
			}
			value += " " + strings.TrimSpace(lines[j])
		}
		return value
	}
	return ""
}

// DecodeSubject decodes RFC 2047 encoded-words in a header value, falling
// back to the raw value when decoding fails.
func DecodeSubject(s string) string {
	dec := &mime.WordDecoder{
		CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
			return charset.NewReaderLabel(label, input)
		},
	}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// DecodeBody produces the best plain-text rendition of a message body, using
// the Content-Type and Content-Transfer-Encoding from the header block.
//
// Multipart bodies are split on their boundary; the first text/plain part
// wins, else the first text/html part is stripped to plain text, else "".
// Each part is decoded per its own transfer encoding.
func DecodeBody(headerBlock, body string) string {
	contentType := Header(headerBlock, "Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if boundary := params["boundary"]; boundary != "" {
			if text := decodeMultipart(body, boundary); text != "" {
				return text
			}
			return ""
		}
	}

	text := decodeTransferEncoding(headerBlock, body)
	text = convertCharset(text, params["charset"])
	if mediaType == "text/html" {
		return HTMLToText(text)
	}
	return text
}

// decodeMultipart splits a multipart body on its boundary markers and picks
// the best text part. Only single-level multipart is handled; a nested
// multipart part is recursed into through DecodeBody on its own headers.
func decodeMultipart(body, boundary string) string {
	segments := strings.Split(normalizeNewlines(body), "--"+boundary)
	firstHTML := ""
	for i, seg := range segments {
		if i == 0 {
			// Everything before the first boundary marker is preamble.
			continue
		}
		seg = strings.TrimSpace(seg)
		if seg == "" || strings.HasPrefix(seg, "--") {
			// Epilogue or the closing marker.
			continue
		}
		partHeader, partBody := Split(seg)
		if partHeader == "" && partBody == seg {
			// A part with no blank-line boundary is header-less text.
			partBody = seg
		}
		partType, _, _ := mime.ParseMediaType(Header(partHeader, "Content-Type"))
		switch {
		case partType == "" || partType == "text/plain":
			return DecodeBody(partHeader, partBody)
		case partType == "text/html" && firstHTML == "":
			firstHTML = DecodeBody(partHeader, partBody)
		case strings.HasPrefix(partType, "multipart/"):
			if text := DecodeBody(partHeader, partBody); text != "" {
				return text
			}
		}
	}
	return firstHTML
}

var hexEscape = regexp.MustCompile(`=([0-9A-Fa-f]{2})`)

// decodeTransferEncoding applies the declared Content-Transfer-Encoding, or
// a heuristic quoted-printable pass when none is declared but the text shows
// quoted-printable signatures. Some real-world senders omit the header.
func decodeTransferEncoding(headerBlock, body string) string {
	encoding := strings.ToLower(strings.TrimSpace(Header(headerBlock, "Content-Transfer-Encoding")))
	switch encoding {
	case "base64":
		return decodeBase64(body)
	case "quoted-printable":
		return decodeQuotedPrintable(normalizeNewlines(body))
	case "":
		normalized := normalizeNewlines(body)
		if looksQuotedPrintable(normalized) {
			return decodeQuotedPrintable(normalized)
		}
		return normalized
	default:
		// 7bit, 8bit, binary: the body is already text.
		return normalizeNewlines(body)
	}
}

// decodeBase64 decodes a base64 body, falling back to the original text when
// the payload is malformed.
func decodeBase64(body string) string {
	compact := strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, body)
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		if decoded, err = base64.RawStdEncoding.DecodeString(compact); err != nil {
			return normalizeNewlines(body)
		}
	}
	return normalizeNewlines(string(decoded))
}

// decodeQuotedPrintable removes soft line breaks and replaces =XX hex escapes
// with the corresponding byte. Invalid escapes are left verbatim.
func decodeQuotedPrintable(text string) string {
	text = strings.ReplaceAll(text, "=\n", "")
	return hexEscape.ReplaceAllStringFunc(text, func(m string) string {
		var b byte
		for _, c := range m[1:] {
			b <<= 4
			switch {
			case c >= '0' && c <= '9':
				b |= byte(c - '0')
			case c >= 'a' && c <= 'f':
				b |= byte(c-'a') + 10
			case c >= 'A' && c <= 'F':
				b |= byte(c-'A') + 10
			}
		}
		return string([]byte{b})
	})
}

// looksQuotedPrintable reports whether undeclared text exhibits
// quoted-printable signatures: soft breaks or common =XX escapes.
func looksQuotedPrintable(text string) bool {
	if strings.Contains(text, "=\n") {
		return true
	}
	for _, marker := range []string{"=20", "=3D", "=E2", "=C2", "=0A", "=0D", "=A0", "=2C"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// convertCharset transcodes text to UTF-8 when the declared charset is
// something else, returning the input unchanged when conversion fails.
func convertCharset(text, label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" || label == "us-ascii" {
		return text
	}
	r, err := charset.NewReaderLabel(label, strings.NewReader(text))
	if err != nil {
		return text
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return text
	}
	return string(converted)
}

var (
	styleBlocks = regexp.MustCompile(`(?is)<(style|script|head)[^>]*>.*?</(style|script|head)>`)
	brTags      = regexp.MustCompile(`(?i)<br\s*/?>`)
	pCloseTags  = regexp.MustCompile(`(?i)</p>`)
	anyTag      = regexp.MustCompile(`(?s)<[^>]*>`)
	manyBlanks  = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText strips an HTML body down to readable plain text: <br> becomes a
// newline, </p> a blank line, every other tag is removed, and common HTML
// entities are unescaped.
func HTMLToText(s string) string {
	s = styleBlocks.ReplaceAllString(s, "")
	s = brTags.ReplaceAllString(s, "\n")
	s = pCloseTags.ReplaceAllString(s, "\n\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = normalizeNewlines(s)
	s = manyBlanks.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
