package maildirstore

import (
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

type participant struct {
	name string
	addr string
}

type envelope struct {
	from       *participant
	recipients []participant
	body       string
}

// readEnvelope parses one message with go-message, collecting the
// sender, every To/Cc/Bcc participant, and the first text body part.
// text/plain is preferred; text/html is kept as-is, markup included,
// for the signature heuristics to strip.
func readEnvelope(r io.Reader) (*envelope, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}
	defer mr.Close()

	env := &envelope{}

	if froms, err := mr.Header.AddressList("From"); err == nil && len(froms) > 0 {
		env.from = &participant{name: froms[0].Name, addr: froms[0].Address}
	}
	for _, field := range []string{"To", "Cc", "Bcc"} {
		addrs, err := mr.Header.AddressList(field)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			env.recipients = append(env.recipients, participant{name: a.Name, addr: a.Address})
		}
	}

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

	env.body = textBody
	if env.body == "" {
		env.body = htmlBody
	}
	return env, nil
}
