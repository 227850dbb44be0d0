package services

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

const defaultEmailSubject = "Message from UniBox"

var emailMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// renderEmailHTML turns operator text into an HTML body. Content that
// already contains markup is sent as is; anything else becomes paragraphs
// with line breaks kept. Attachments are appended as links.
func renderEmailHTML(content string, attachments []models.AttachmentInput) string {
	var body string
	if looksLikeHTML(content) {
		body = content
	} else {
		var buf bytes.Buffer
		if err := emailMarkdown.Convert([]byte(content), &buf); err != nil {
			body = "<p>" + strings.ReplaceAll(html.EscapeString(content), "\n", "<br>") + "</p>"
		} else {
			body = buf.String()
		}
	}

	if len(attachments) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("<p><strong>Attachments:</strong></p><ul>")
	for _, a := range attachments {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(a.URL), html.EscapeString(attachmentName(a)))
	}
	b.WriteString("</ul>")
	return b.String()
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

func attachmentName(a models.AttachmentInput) string {
	if a.Filename != "" {
		return a.Filename
	}
	return a.URL
}

func emailSubject(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return defaultEmailSubject
	}
	return subject
}
