package models

import "fmt"

// Protocol identifies which mail protocol a ServerConfig describes.
const (
	ProtocolIMAP = "imap"
	ProtocolSMTP = "smtp"
	ProtocolPOP3 = "pop3"
)

// ServerConfig describes one endpoint for one protocol. It is immutable
// once discovered; re-discovery replaces it wholesale.
type ServerConfig struct {
	Host   string `json:"host" toml:"host"`
	Port   int    `json:"port" toml:"port"`
	Secure bool   `json:"secure" toml:"secure"`
}

// Addr returns the host:port dial address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsZero reports whether the config carries no endpoint.
func (s ServerConfig) IsZero() bool {
	return s.Host == "" && s.Port == 0
}

// DiscoveredConfig is the result of one discovery attempt for a domain.
// Partial results are valid; at least one protocol must be present for the
// attempt to count as successful.
type DiscoveredConfig struct {
	IMAP *ServerConfig `json:"imap,omitempty"`
	SMTP *ServerConfig `json:"smtp,omitempty"`
	POP3 *ServerConfig `json:"pop3,omitempty"`
}

// HasAny reports whether at least one protocol endpoint was discovered.
func (d *DiscoveredConfig) HasAny() bool {
	if d == nil {
		return false
	}
	return d.IMAP != nil || d.SMTP != nil || d.POP3 != nil
}

// IncomingServer describes the endpoint an account connects to for reading
// mail, including which protocol it speaks.
type IncomingServer struct {
	ServerConfig
	Protocol string `json:"protocol"`
}
