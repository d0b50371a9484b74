package models

import (
	"html/template"
	"time"
)

// EmailHeader is the envelope-level snapshot of one message, produced per
// message from server envelope+flags. It is immutable; a refetch of the
// page replaces headers wholesale.
type EmailHeader struct {
	UID      uint32    `json:"uid"`
	Flags    []string  `json:"flags"`
	Date     time.Time `json:"date"`
	From     string    `json:"from"`
	FromName string    `json:"from_name"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Seen     bool      `json:"seen"`
}

// Email represents a fully fetched email message
type Email struct {
	EmailHeader

	Cc             string        `json:"cc"`
	Body           string        `json:"body"`
	HTML           template.HTML `json:"html"`
	Preview        string        `json:"preview"`
	Attachments    []Attachment  `json:"attachments"`
	HasAttachments bool          `json:"has_attachments"`

	MessageID  string   `json:"message_id"`
	InReplyTo  string   `json:"in_reply_to"`
	References []string `json:"references"`
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Content     []byte `json:"-"` // Excluded from JSON
}
