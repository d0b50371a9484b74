package imap

import (
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// AccountData is everything the first view of an account needs, produced
// in one coordinated pass.
type AccountData struct {
	Mailboxes      models.MailBoxes     `json:"mailboxes"`
	DefaultMailbox string               `json:"default_mailbox"`
	Headers        []models.EmailHeader `json:"headers"`
	TotalEmails    uint32               `json:"total_emails"`
}

// InitializeAccountData fetches the full mailbox tree and the default
// mailbox's first page of headers in a single lock-scoped pass. Doing
// both together closes the race where a mailbox list is shown before
// emails can be served and a premature fetch hits a half-ready session.
// Header accumulation is bounded by the configured warm-up budget, and a
// failed header fetch degrades to an empty list: an empty inbox view is
// preferable to blocking startup.
func (s *Session) InitializeAccountData(initialEmailLimit uint32) (*AccountData, error) {
	release := s.lock.acquireRead()
	defer release()

	infos, err := s.listMailboxes()
	if err != nil {
		return nil, err
	}

	data := &AccountData{
		Mailboxes:      BuildMailboxTree(infos),
		DefaultMailbox: SelectDefaultMailbox(infos),
		Headers:        []models.EmailHeader{},
	}
	if data.DefaultMailbox == "" {
		return data, nil
	}

	page, err := s.fetchHeaders(data.DefaultMailbox, 0, initialEmailLimit, s.warmupBudget)
	if err != nil {
		s.log.Warn("Initial email fetch failed for %s in %s: %v", s.account.Email, data.DefaultMailbox, err)
		return data, nil
	}
	data.Headers = page.Headers
	data.TotalEmails = page.TotalEmails
	return data, nil
}
