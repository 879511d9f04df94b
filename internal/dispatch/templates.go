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
	"fmt"
	"html"
	"strings"

	"github.com/heerawalla/atelier-relay/internal/requestid"
)

// Canonical subjects and URLs for the automatic emails.
const (
	AckSubject          = "Heerawalla - Your request has been received"
	ContactAckSubject   = "Heerawalla - Thanks for your message"
	RejectSubject       = "Heerawalla - Please submit your request via our website"
	SubscribeAckSubject = "Heerawalla - You're on the list"
	ConsultAckSubject   = "Heerawalla - Consultation confirmed"

	bespokeURL       = "https://www.heerawalla.com/inspirations"
	bespokeDirectURL = "https://www.heerawalla.com/bespoke"
	unsubscribeURL   = "https://www.heerawalla.com/unsubscribe"
)

// AckText is the body of the acknowledgment sent for an accepted request.
var AckText = strings.Join([]string{
	"Thank you for contacting Heerawalla.",
	"",
	"We confirm receipt of your request. Our atelier will reply personally within 1-2 business days.",
	"",
	"Next, our atelier will review your request and confirm details by reply. Once aligned, we will share a final estimate and timeline.",
	"",
	"Your request now enters a deliberate, best-in-class craftsmanship process - measured, personal, and worth the wait.",
	"",
	"If you would like to add details, submit a new note at Heerawalla.com/contact and include your request ID.",
	"",
	"Warm regards,",
	"Heerawalla",
	"www.heerawalla.com",
	"",
	"Privacy: We do not store your data beyond this email thread. This exchange remains private and direct.",
}, "\n")

// ContactAckText acknowledges a plain contact-form message.
var ContactAckText = strings.Join([]string{
	"Thank you for reaching out to Heerawalla.",
	"",
	"We have received your message and will respond within 1-2 business days.",
	"",
	"If you need to add details, submit a new note at Heerawalla.com/contact.",
	"",
	"Warm regards,",
	"Heerawalla",
	"www.heerawalla.com",
}, "\n")

// RejectText asks direct emailers to submit through the website instead.
var RejectText = strings.Join([]string{
	"Thank you for your message.",
	"",
	"To protect your privacy and ensure a consistent atelier process, we can only accept new requests submitted through our website.",
	"",
	"Please visit: " + bespokeURL,
	`Select an inspiration and click "Request a bespoke quote."`,
	"If you did not find a close match, submit a bespoke request here: " + bespokeDirectURL,
	"",
	"If you are replying to an existing Heerawalla thread, please reply directly to that email instead.",
	"",
	"Warm regards,",
	"Heerawalla",
	"www.heerawalla.com",
}, "\n")

// SubscribeAckText confirms a mailing-list signup.
var SubscribeAckText = strings.Join([]string{
	"Thank you for joining Heerawalla.",
	"",
	"You're on the list for new drops, atelier updates, and bespoke highlights.",
	"",
	"To refine your interests, visit Heerawalla.com/join.",
	"To unsubscribe, visit " + unsubscribeURL + ".",
	"",
	"Warm regards,",
	"Heerawalla",
	"www.heerawalla.com",
}, "\n")

// htmlShell wraps a body fragment in the branded email layout shared by all
// automatic emails.
func htmlShell(heading, fragment string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body style="margin:0;padding:0;background:#f6f5f2;color:#0f172a;font-family:-apple-system, Segoe UI, Helvetica, Arial, sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="border-collapse:collapse;">
    <tr>
      <td align="center" style="padding:32px 16px;">
        <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="border-collapse:collapse;background:#ffffff;border:1px solid #e5e7eb;">
          <tr>
            <td style="padding:36px 40px 28px 40px;">
              <div style="font-size:12px;letter-spacing:0.32em;text-transform:uppercase;color:#64748b;margin-bottom:12px;">Heerawalla</div>
              <h1 style="margin:0 0 16px 0;font-size:22px;line-height:1.4;font-weight:600;color:#0f172a;">` + heading + `</h1>
` + fragment + `
              <div style="height:1px;background:#e5e7eb;margin:0 0 18px 0;"></div>
              <p style="margin:0 0 6px 0;font-size:14px;color:#0f172a;">Warm regards,</p>
              <p style="margin:0 0 10px 0;font-size:14px;font-weight:600;color:#0f172a;">Heerawalla</p>
              <p style="margin:0;font-size:12px;color:#64748b;"><a href="https://www.heerawalla.com" style="color:#64748b;text-decoration:underline;">www.heerawalla.com</a></p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
}

func para(text string) string {
	return `              <p style="margin:0 0 16px 0;font-size:15px;line-height:1.7;color:#334155;">` + text + `</p>
`
}

// AckHTML is the HTML variant of AckText.
var AckHTML = htmlShell("We have received your request",
	para("Thank you for contacting Heerawalla. Your request is now with our atelier, and you can expect a personal reply within 1-2 business days.")+
		para("Next, our atelier will review your request and confirm details by reply. Once aligned, we will share a final estimate and timeline.")+
		para("Your request now enters a deliberate, best-in-class craftsmanship process - measured, personal, and worth the wait.")+
		para(`If you would like to add details, submit a new note at <a href="https://www.heerawalla.com/contact" style="color:#0f172a;text-decoration:underline;">Heerawalla.com/contact</a> and include your request ID.`))

// ContactAckHTML is the HTML variant of ContactAckText.
var ContactAckHTML = htmlShell("Thanks for your message",
	para("We have received your message and will respond within 1-2 business days.")+
		para(`If you need to add details, submit a new note at <a href="https://www.heerawalla.com/contact" style="color:#0f172a;text-decoration:underline;">Heerawalla.com/contact</a>.`))

// RejectHTML is the HTML variant of RejectText.
var RejectHTML = htmlShell("Please submit your request via our website",
	para("Thank you for your message. To protect your privacy and ensure a consistent atelier process, we can only accept new requests submitted through our website.")+
		para(`Visit <a href="`+bespokeURL+`" style="color:#0f172a;text-decoration:underline;">`+bespokeURL+`</a> and select an inspiration, then click "Request a bespoke quote."`)+
		para(`If you did not find a close match, submit a bespoke request here: <a href="`+bespokeDirectURL+`" style="color:#0f172a;text-decoration:underline;">`+bespokeDirectURL+`</a>`)+
		para("If you are replying to an existing Heerawalla thread, please reply directly to that email instead."))

// SubscribeAckHTML is the HTML variant of SubscribeAckText.
var SubscribeAckHTML = htmlShell("You're on the list",
	para("Thank you for joining Heerawalla. You're on the list for new drops, atelier updates, and bespoke highlights.")+
		para(`To refine your interests, visit <a href="https://www.heerawalla.com/join" style="color:#0f172a;text-decoration:underline;">Heerawalla.com/join</a>.`)+
		para(`Prefer not to receive updates? You can unsubscribe at <a href="`+unsubscribeURL+`" style="color:#0f172a;text-decoration:underline;">Heerawalla.com/unsubscribe</a>.`))

// ForwardParams collects everything needed to render a staff-bound forward.
type ForwardParams struct {
	Subject     string
	Body        string
	SenderEmail string
	SenderName  string
	RequestID   string
}

// BuildForwardSubject tags a base subject with the request ID.
func BuildForwardSubject(base, id string) string {
	return requestid.TagSubject(base, id)
}

// BuildForwardHTML renders the HTML body of a forward to the atelier
// mailbox: sender details up top, the (escaped) message below.
func BuildForwardHTML(p ForwardParams) string {
	sender := p.SenderEmail
	if p.SenderName != "" {
		sender = fmt.Sprintf("%s <%s>", p.SenderName, p.SenderEmail)
	}
	body := strings.ReplaceAll(html.EscapeString(p.Body), "\n", "<br>\n")
	return htmlShell(html.EscapeString(p.Subject),
		para("From: "+html.EscapeString(sender))+
			para(requestid.Label+" "+html.EscapeString(p.RequestID))+
			`              <div style="font-size:15px;line-height:1.7;color:#334155;">`+body+`</div>
`)
}
