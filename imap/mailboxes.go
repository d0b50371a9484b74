package imap

import (
	"fmt"
	"strings"

	goimap "github.com/emersion/go-imap"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// allMailNames are the Gmail/Google "All Mail" variants, matched exactly
// or as a path substring, localized spellings included.
var allMailNames = []string{
	"[Gmail]/All Mail",
	"[Google Mail]/All Mail",
	"All Mail",
	"AllMail",
}

// FetchMailboxes retrieves the raw mailbox list from the server.
func (s *Session) FetchMailboxes() ([]models.MailboxInfo, error) {
	release := s.lock.acquireRead()
	defer release()

	return s.listMailboxes()
}

// listMailboxes must be called with the mailbox lock held.
func (s *Session) listMailboxes() ([]models.MailboxInfo, error) {
	mailboxChan := make(chan *goimap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.client.List("", "*", mailboxChan)
	}()

	var mailboxes []models.MailboxInfo
	for mb := range mailboxChan {
		mailboxes = append(mailboxes, models.MailboxInfo{
			Name:       mb.Name,
			Delimiter:  mb.Delimiter,
			Attributes: mb.Attributes,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching folders: %v", err)
	}
	return mailboxes, nil
}

// BuildMailboxTree converts a raw mailbox list into the nested folder
// tree, splitting each path on that mailbox's own delimiter — servers do
// not agree on a hierarchy separator. The tree is rebuilt wholesale on
// every call.
func BuildMailboxTree(infos []models.MailboxInfo) models.MailBoxes {
	tree := make(models.MailBoxes)

	for _, info := range infos {
		segments := []string{info.Name}
		if info.Delimiter != "" {
			segments = strings.Split(info.Name, info.Delimiter)
		}

		current := tree
		for i, segment := range segments {
			if segment == "" {
				continue
			}
			node, ok := current[segment]
			if !ok {
				node = &models.Mailbox{
					Delimiter: info.Delimiter,
					Path:      strings.Join(segments[:i+1], info.Delimiter),
					Children:  make(models.MailBoxes),
				}
				current[segment] = node
			}
			if i == len(segments)-1 {
				node.Attribs = info.Attributes
				node.Delimiter = info.Delimiter
			}
			current = node.Children
		}
	}

	return tree
}

// SelectDefaultMailbox picks the mailbox an account should open first:
// an All-Mail-style folder beats INBOX, INBOX beats everything else, and
// failing both the first listed mailbox wins.
func SelectDefaultMailbox(infos []models.MailboxInfo) string {
	for _, name := range allMailNames {
		for _, info := range infos {
			if info.Name == name {
				return info.Name
			}
		}
	}
	for _, info := range infos {
		lower := strings.ToLower(info.Name)
		for _, name := range allMailNames {
			if strings.Contains(lower, strings.ToLower(name)) {
				return info.Name
			}
		}
	}

	for _, info := range infos {
		if strings.EqualFold(info.Name, "INBOX") {
			return info.Name
		}
	}

	if len(infos) > 0 {
		return infos[0].Name
	}
	return ""
}
