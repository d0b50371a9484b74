// Package proxy implements the proxy selection and test contract consumed
// by the connection layer. Proxy list management lives with the caller;
// this package only turns a proxy choice into a dialer and verifies that
// proxies actually relay traffic.
package proxy

import (
	"context"
	"fmt"
	"net"

	xproxy "golang.org/x/net/proxy"

	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// Dialer is the minimal dial contract the IMAP layer consumes.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type directDialer struct {
	net.Dialer
}

// Result of proxy resolution: the dialer to use and, when a proxy was
// selected, its address for logging.
type Resolution struct {
	Dialer    Dialer
	ProxyUsed string
}

// ForAccount resolves the proxy an account should connect through. An
// account referencing a named proxy gets that proxy; everything else
// falls through to the global default. A dangling proxy reference is an
// error rather than a silent direct connection.
func ForAccount(account *models.Account, cfg *config.Config, logf func(format string, v ...interface{})) (Resolution, error) {
	chosen := cfg.Proxy
	if account != nil && account.ProxyID != "" {
		named, ok := cfg.Proxies[account.ProxyID]
		if !ok || named.Address == "" {
			return Resolution{}, fmt.Errorf("account %s references unknown proxy %q", account.Email, account.ProxyID)
		}
		chosen = named
		chosen.Enabled = true
	}
	return Configure(chosen, logf)
}

// Configure resolves the effective proxy configuration into a dialer.
// With the proxy disabled or unset the connection goes direct. logf
// receives a line describing the choice; nil is allowed.
func Configure(cfg config.ProxyConfig, logf func(format string, v ...interface{})) (Resolution, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	if !cfg.Enabled || cfg.Address == "" {
		logf("connecting directly, no proxy configured")
		return Resolution{Dialer: &directDialer{}}, nil
	}

	var auth *xproxy.Auth
	if cfg.User != "" {
		auth = &xproxy.Auth{User: cfg.User, Password: cfg.Pass}
	}

	socks, err := xproxy.SOCKS5("tcp", cfg.Address, auth, xproxy.Direct)
	if err != nil {
		return Resolution{}, err
	}

	logf("routing connection through SOCKS5 proxy %s", cfg.Address)
	return Resolution{
		Dialer:    socks.(xproxy.ContextDialer),
		ProxyUsed: cfg.Address,
	}, nil
}
