package api

import (
	"html/template"
	"strconv"

	"github.com/HALDRO/IMAP-Viewer-sub001/imap"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/gofiber/fiber/v2"
)

// EmailHandler serves mailbox and message operations on live sessions.
type EmailHandler struct {
	manager *imap.Manager
}

// NewEmailHandler creates a new email handler.
func NewEmailHandler(manager *imap.Manager) *EmailHandler {
	return &EmailHandler{manager: manager}
}

// GetMailboxes returns the mailbox tree for a connected account.
func (h *EmailHandler) GetMailboxes(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	infos, err := session.FetchMailboxes()
	if err != nil {
		return utils.InternalServerError("Failed to list mailboxes", err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"mailboxes": imap.BuildMailboxTree(infos),
		"default":   imap.SelectDefaultMailbox(infos),
	})
}

// GetEmails returns a page of headers for a mailbox, newest first.
// Query params: offset (default 0), limit (default 50, capped at 200).
func (h *EmailHandler) GetEmails(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	mailbox := c.Params("+")
	if mailbox == "" {
		return utils.BadRequestError("Mailbox name required", nil)
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	page, err := session.FetchEmails(mailbox, uint32(offset), uint32(limit))
	if err != nil {
		return utils.InternalServerError("Failed to fetch emails", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"page":    page,
	})
}

// GetEmail returns a single message body with sanitized HTML.
func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	mailbox, uid, err := h.messageRef(c)
	if err != nil {
		return err
	}

	email, err := session.FetchEmailBody(mailbox, uid)
	if err != nil {
		return utils.InternalServerError("Failed to fetch email", err)
	}

	email.HTML = template.HTML(utils.SanitizeHTML(string(email.HTML)))

	return c.JSON(fiber.Map{
		"success": true,
		"email":   email,
	})
}

// MarkSeen flags a message as read.
func (h *EmailHandler) MarkSeen(c *fiber.Ctx) error {
	return h.setSeen(c, true)
}

// MarkUnseen removes the read flag from a message.
func (h *EmailHandler) MarkUnseen(c *fiber.Ctx) error {
	return h.setSeen(c, false)
}

func (h *EmailHandler) setSeen(c *fiber.Ctx, seen bool) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	mailbox, uid, err := h.messageRef(c)
	if err != nil {
		return err
	}

	if seen {
		err = session.MarkAsSeen(mailbox, uid)
	} else {
		err = session.MarkAsUnseen(mailbox, uid)
	}
	if err != nil {
		return utils.InternalServerError("Failed to update flags", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// DeleteEmail permanently deletes a message (flag + expunge).
func (h *EmailHandler) DeleteEmail(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	mailbox, uid, err := h.messageRef(c)
	if err != nil {
		return err
	}

	if err := session.DeleteEmail(mailbox, uid); err != nil {
		return utils.InternalServerError("Failed to delete email", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email deleted",
	})
}

// DeleteEmails deletes a batch of messages in one expunge.
func (h *EmailHandler) DeleteEmails(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	var req struct {
		Mailbox string   `json:"mailbox"`
		UIDs    []uint32 `json:"uids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if req.Mailbox == "" || len(req.UIDs) == 0 {
		return utils.BadRequestError("Mailbox and uids required", nil)
	}

	if err := session.DeleteEmails(req.Mailbox, req.UIDs); err != nil {
		return utils.InternalServerError("Failed to delete emails", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"deleted": len(req.UIDs),
	})
}

// session resolves the :id param into a live IMAP session.
func (h *EmailHandler) session(c *fiber.Ctx) (*imap.Session, error) {
	accountID := c.Params("id")
	if accountID == "" {
		return nil, utils.BadRequestError("Account ID required", nil)
	}
	session, err := h.manager.Session(accountID)
	if err != nil {
		return nil, utils.NotFoundError("Account is not connected", err)
	}
	return session, nil
}

// messageRef extracts the mailbox and message UID from the query and path.
func (h *EmailHandler) messageRef(c *fiber.Ctx) (string, uint32, error) {
	mailbox := c.Query("mailbox")
	if mailbox == "" {
		return "", 0, utils.BadRequestError("Mailbox query parameter required", nil)
	}
	uid, err := strconv.ParseUint(c.Params("uid"), 10, 32)
	if err != nil || uid == 0 {
		return "", 0, utils.BadRequestError("A valid message UID is required", err)
	}
	return mailbox, uint32(uid), nil
}
