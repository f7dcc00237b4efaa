package imapstore

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// extractBody parses a raw RFC 5322 message and returns the first text
// body part: text/plain preferred, text/html kept with markup for the
// signature heuristics to strip. If MIME parsing fails the raw bytes
// are treated as plain text.
func extractBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	if textBody != "" {
		return textBody
	}
	return htmlBody
}
