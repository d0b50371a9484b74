package imap

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// previewLength bounds the plain-text preview derived from a body.
const previewLength = 200

// FetchEmailBody retrieves and parses one full message by UID.
func (s *Session) FetchEmailBody(mailbox string, uid uint32) (*models.Email, error) {
	release := s.lock.acquireRead()
	defer release()

	if _, err := s.client.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchFlags,
		goimap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var msg *goimap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch error: %v", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d not found in %s", uid, mailbox)
	}

	email := &models.Email{EmailHeader: headerFromMessage(msg)}
	if body := msg.GetBody(section); body != nil {
		parseBody(body, email)
	}
	email.Preview = makePreview(email.Body, string(email.HTML))
	return email, nil
}

// parseBody walks the MIME structure, filling text/HTML bodies,
// threading headers and attachment metadata. Parse failures leave the
// email with whatever was extracted so far; a partial body beats none.
func parseBody(r io.Reader, email *models.Email) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return
	}

	header := mr.Header
	if msgID, err := header.MessageID(); err == nil {
		email.MessageID = msgID
	}
	if irt, err := header.Text("In-Reply-To"); err == nil {
		email.InReplyTo = strings.TrimSpace(irt)
	}
	if refs, err := header.Text("References"); err == nil {
		email.References = strings.Fields(refs)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			content, _ := io.ReadAll(part.Body)
			contentType, _, _ := h.ContentType()
			switch {
			case strings.Contains(contentType, "text/html"):
				email.HTML = template.HTML(content)
			case strings.Contains(contentType, "text/plain"):
				email.Body = string(content)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			content, _ := io.ReadAll(part.Body)
			email.Attachments = append(email.Attachments, models.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        len(content),
				Content:     content,
			})
		}
	}
	email.HasAttachments = len(email.Attachments) > 0
}

// makePreview derives a short plain-text preview, preferring the text
// body and falling back to stripped HTML.
func makePreview(textBody, htmlBody string) string {
	text := strings.TrimSpace(textBody)
	if text == "" && htmlBody != "" {
		text = strings.TrimSpace(html2text.HTML2Text(htmlBody))
	}
	text = strings.Join(strings.Fields(text), " ")
	// Cut on runes so a multi-byte character is never split.
	if runes := []rune(text); len(runes) > previewLength {
		text = string(runes[:previewLength]) + "…"
	}
	return text
}
