package discovery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultProbeTimeout is used when a caller passes a zero timeout.
const DefaultProbeTimeout = 5 * time.Second

// ConnectionResult is the outcome of a single reachability probe.
// Expected failures (refused, timeout, DNS miss) are reported here,
// never as a returned error.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HostValidation is the outcome of the composed host check. RealHostname
// is set when the TLS certificate pointed at a better hostname than the
// one that was probed.
type HostValidation struct {
	IsValid      bool   `json:"isValid"`
	RealHostname string `json:"realHostname,omitempty"`
}

// Prober performs raw TCP/TLS reachability tests and TLS certificate
// hostname extraction. The dial and lookup functions are injectable so
// tests can run without a network.
type Prober struct {
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	LookupHost  func(ctx context.Context, host string) ([]string, error)
}

// NewProber creates a prober backed by the real network.
func NewProber() *Prober {
	var dialer net.Dialer
	var resolver net.Resolver
	return &Prober{
		DialContext: dialer.DialContext,
		LookupHost:  resolver.LookupHost,
	}
}

// TestConnection opens a raw socket against host:port and reports whether
// the connect succeeded. The socket is always torn down. For secure
// endpoints a TLS handshake is performed with verification disabled: the
// probe answers "is something speaking TLS here", not "is the cert valid".
func (p *Prober) TestConnection(ctx context.Context, host string, port int, secure bool, timeout time.Duration) ConnectionResult {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := p.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ConnectionResult{Success: false, Error: err.Error()}
	}
	defer conn.Close()

	if secure {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return ConnectionResult{Success: false, Error: err.Error()}
		}
		tlsConn.Close()
	}

	return ConnectionResult{Success: true}
}

// CheckHostExists performs a DNS lookup for the hostname and swallows all
// resolution errors; a host that does not resolve simply does not exist.
func (p *Prober) CheckHostExists(ctx context.Context, hostname string) bool {
	addrs, err := p.LookupHost(ctx, hostname)
	if err != nil {
		return false
	}
	return len(addrs) > 0
}

// RealHostnameFromTLS connects with certificate validation disabled and
// extracts the hostname the server's certificate was actually issued for:
// CN first, then the first non-wildcard SAN. When the certificate only
// carries wildcard names the wildcard is returned unchanged so the caller
// can reconstruct a concrete host from it.
func (p *Prober) RealHostnameFromTLS(ctx context.Context, host string, port int, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true, // certificate is inspected, not trusted for transport
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return "", err
	}
	defer tlsConn.Close()

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return "", fmt.Errorf("no peer certificate from %s:%d", host, port)
	}
	return hostnameFromCert(certs[0].Subject.CommonName, certs[0].DNSNames), nil
}

// hostnameFromCert picks the best hostname out of a certificate's CN and
// SANs. Wildcards only win when nothing concrete exists.
func hostnameFromCert(commonName string, sans []string) string {
	if commonName != "" && !strings.HasPrefix(commonName, "*.") {
		return commonName
	}
	for _, san := range sans {
		if san != "" && !strings.HasPrefix(san, "*.") {
			return san
		}
	}
	if commonName != "" {
		return commonName
	}
	for _, san := range sans {
		if san != "" {
			return san
		}
	}
	return ""
}

// ValidateEmailHost composes DNS existence, port reachability and (for
// secure endpoints) TLS hostname correction. Many hosting providers front
// multiple domains behind one wildcard-certificate IMAP cluster, so the
// literal requested hostname is frequently not the right one to persist.
func (p *Prober) ValidateEmailHost(ctx context.Context, host string, port int, secure bool, timeout time.Duration) HostValidation {
	if !p.CheckHostExists(ctx, host) {
		return HostValidation{IsValid: false}
	}

	result := p.TestConnection(ctx, host, port, secure, timeout)
	if !result.Success {
		return HostValidation{IsValid: false}
	}

	validation := HostValidation{IsValid: true}
	if !secure {
		return validation
	}

	certHost, err := p.RealHostnameFromTLS(ctx, host, port, timeout)
	if err != nil || certHost == "" {
		return validation
	}
	if corrected := correctHostname(host, certHost); corrected != host {
		validation.RealHostname = corrected
	}
	return validation
}

// correctHostname maps the hostname found in a certificate onto the host
// that should actually be persisted for IMAP. Wildcard names are stripped
// and given an imap. prefix; a bare base domain that doesn't look like a
// mail host gets the same prefix.
func correctHostname(requested, certHost string) string {
	if certHost == "" || certHost == requested {
		return requested
	}
	if strings.HasPrefix(certHost, "*.") {
		return "imap." + strings.TrimPrefix(certHost, "*.")
	}
	if !looksLikeMailHost(certHost) {
		return "imap." + certHost
	}
	return certHost
}

// mailHostPrefixes are hostname labels that mark a host as mail-serving.
var mailHostPrefixes = []string{"imap", "imaps", "mail", "mx", "pop", "pop3", "smtp", "webmail", "secure"}

func looksLikeMailHost(host string) bool {
	label, _, _ := strings.Cut(host, ".")
	label = strings.ToLower(label)
	for _, prefix := range mailHostPrefixes {
		if label == prefix {
			return true
		}
	}
	return false
}
