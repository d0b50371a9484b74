package models

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// AuthType selects how an account authenticates against its server.
const (
	AuthTypeBasic  = "basic"
	AuthTypeOAuth2 = "oauth2"
)

// ConnectionStatus is the coarse machine state of an account's session.
// It is mutated only by the IMAP manager's lifecycle hooks.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// Account represents an email account configuration
type Account struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	Password         string           `json:"-"` // Never expose in JSON
	AuthType         string           `json:"auth_type"`
	RefreshToken     string           `json:"-"`
	ClientID         string           `json:"client_id,omitempty"`
	Incoming         IncomingServer   `json:"incoming"`
	Outgoing         *IncomingServer  `json:"outgoing,omitempty"`
	ProxyID          string           `json:"proxy_id,omitempty"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
}

// AccountID derives the stable account identifier from an email address.
// The hash is deterministic so re-importing the same address produces the
// same ID and duplicate detection keeps working.
func AccountID(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("%x", sum[:8])
}

// Domain returns the domain part of the account's email address.
func (a *Account) Domain() string {
	_, domain, ok := strings.Cut(a.Email, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(domain))
}

// IsOAuth2 reports whether the account authenticates with XOAUTH2.
func (a *Account) IsOAuth2() bool {
	return a.AuthType == AuthTypeOAuth2
}
