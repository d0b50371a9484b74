package imap

import (
	"fmt"
	"time"

	goimap "github.com/emersion/go-imap"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// FetchEmails returns one page of headers from a mailbox, newest first.
// Offset 0 is the newest message. The wire protocol returns ascending
// sequence order, so the page is reversed before being returned.
func (s *Session) FetchEmails(mailbox string, offset, limit uint32) (*models.PaginatedHeaders, error) {
	release := s.lock.acquireRead()
	defer release()

	return s.fetchHeaders(mailbox, offset, limit, 0)
}

// fetchHeaders must be called with the mailbox lock held. A non-zero
// budget stops header accumulation once it elapses; already-received
// messages are kept and the rest of the stream is drained.
func (s *Session) fetchHeaders(mailbox string, offset, limit uint32, budget time.Duration) (*models.PaginatedHeaders, error) {
	mbox, err := s.client.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %v", mailbox, err)
	}

	total := mbox.Messages
	start, end, ok := headerPageRange(total, offset, limit)
	if !ok {
		return models.NewPaginatedHeaders([]models.EmailHeader{}, offset, limit, total), nil
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddRange(start, end)

	messages := make(chan *goimap.Message, limit)
	items := []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchFlags,
		goimap.FetchUid,
	}

	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	var deadline <-chan time.Time
	if budget > 0 {
		timer := time.NewTimer(budget)
		defer timer.Stop()
		deadline = timer.C
	}

	var headers []models.EmailHeader
	truncated := false
	for msg := range messages {
		if truncated {
			continue // drain the stream without accumulating
		}
		headers = append(headers, headerFromMessage(msg))
		select {
		case <-deadline:
			s.log.Debug("Header fetch budget exhausted for %s after %d message(s)", mailbox, len(headers))
			truncated = true
		default:
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %v", err)
	}

	reverseHeaders(headers)

	return models.NewPaginatedHeaders(headers, offset, limit, total), nil
}

// headerPageRange maps a newest-first page (offset 0 is the newest
// message) onto 1-based ascending sequence numbers. ok is false when the
// page falls entirely outside the mailbox.
func headerPageRange(total, offset, limit uint32) (start, end uint32, ok bool) {
	if total == 0 || limit == 0 || offset >= total {
		return 0, 0, false
	}
	end = total - offset
	start = 1
	if end > limit {
		start = end - limit + 1
	}
	return start, end, true
}

// reverseHeaders flips a fetched ascending page into newest-first order.
func reverseHeaders(headers []models.EmailHeader) {
	for i, j := 0, len(headers)-1; i < j; i, j = i+1, j-1 {
		headers[i], headers[j] = headers[j], headers[i]
	}
}

// headerFromMessage builds the immutable header snapshot for one message.
func headerFromMessage(msg *goimap.Message) models.EmailHeader {
	header := models.EmailHeader{
		UID:   msg.Uid,
		Flags: msg.Flags,
	}
	for _, flag := range msg.Flags {
		if flag == goimap.SeenFlag {
			header.Seen = true
			break
		}
	}
	if msg.Envelope != nil {
		header.Date = msg.Envelope.Date
		header.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			header.From = from.Address()
			header.FromName = from.PersonalName
		}
		if len(msg.Envelope.To) > 0 {
			header.To = msg.Envelope.To[0].Address()
		}
	}
	return header
}

// MarkAsSeen sets the \Seen flag on a message.
func (s *Session) MarkAsSeen(mailbox string, uid uint32) error {
	return s.setFlag(mailbox, uid, goimap.SeenFlag, true)
}

// MarkAsUnseen removes the \Seen flag from a message.
func (s *Session) MarkAsUnseen(mailbox string, uid uint32) error {
	return s.setFlag(mailbox, uid, goimap.SeenFlag, false)
}

// setFlag adds or removes one flag on one message. Flag mutation touches
// selected-mailbox state, so it runs under the write lock.
func (s *Session) setFlag(mailbox string, uid uint32, flag string, add bool) error {
	release := s.lock.acquireWrite()
	defer release()

	if _, err := s.client.Select(mailbox, false); err != nil {
		return fmt.Errorf("error selecting folder %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	var operation goimap.FlagsOp = goimap.AddFlags
	if !add {
		operation = goimap.RemoveFlags
	}
	item := goimap.FormatFlagsOp(operation, true)
	flags := []interface{}{flag}

	if err := s.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("error setting message flag: %v", err)
	}
	return nil
}

// DeleteEmail permanently removes one message.
func (s *Session) DeleteEmail(mailbox string, uid uint32) error {
	return s.DeleteEmails(mailbox, []uint32{uid})
}

// DeleteEmails marks the given messages \Deleted and expunges the
// mailbox, all under the write lock.
func (s *Session) DeleteEmails(mailbox string, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	release := s.lock.acquireWrite()
	defer release()

	if _, err := s.client.Select(mailbox, false); err != nil {
		return fmt.Errorf("error selecting folder %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)

	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	flags := []interface{}{goimap.DeletedFlag}

	if err := s.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("error marking message as deleted: %v", err)
	}
	if err := s.client.Expunge(nil); err != nil {
		return fmt.Errorf("error expunging mailbox: %v", err)
	}
	return nil
}
