package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/HALDRO/IMAP-Viewer-sub001/auth"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/proxy"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// Hooks let the caller observe session lifecycle without this layer ever
// touching UI or persistence directly.
type Hooks struct {
	OnStatusChange func(status models.ConnectionStatus, details string)
	OnLog          func(message string, level string)
	OnTokenExpired func()
}

func (h Hooks) log(level, format string, v ...interface{}) {
	if h.OnLog != nil {
		h.OnLog(fmt.Sprintf(format, v...), level)
	}
}

// Session is one live protocol connection for one account. All mailbox
// operations go through the mailbox lock; see lock.go.
type Session struct {
	account *models.Account
	client  *client.Client
	hooks   Hooks
	log     *utils.Logger
	machine *stateMachine
	lock    mailboxLock

	// Warm-up tuning, copied from the manager at connect time.
	warmupBudget time.Duration
}

// Status returns the session's connection status.
func (s *Session) Status() models.ConnectionStatus {
	return s.machine.status()
}

// Account returns the account this session serves.
func (s *Session) Account() *models.Account {
	return s.account
}

// dialAdapter bridges a context-aware dialer into the Dial interface the
// protocol client wants.
type dialAdapter struct {
	ctx    context.Context
	dialer proxy.Dialer
}

func (d *dialAdapter) Dial(network, addr string) (net.Conn, error) {
	return d.dialer.DialContext(d.ctx, network, addr)
}

// connect establishes the protocol connection and authenticates. It owns
// the connecting→connected/disconnected transitions.
func (s *Session) connect(ctx context.Context, tokens *auth.TokenManager, resolution proxy.Resolution) error {
	incoming := s.account.Incoming
	addr := incoming.Addr()

	if err := s.machine.transition(eventConnect, "connecting to "+addr); err != nil {
		return err
	}

	fail := func(err error) error {
		_ = s.machine.transition(eventConnectFailed, err.Error())
		return err
	}

	dialer := &dialAdapter{ctx: ctx, dialer: resolution.Dialer}

	var c *client.Client
	var err error
	if incoming.Secure {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: incoming.Host})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		s.log.Error("Connection to %s failed for %s: %v", addr, s.account.Email, err)
		return fail(fmt.Errorf("connection error: %v", err))
	}
	c.Timeout = 60 * time.Second

	if err := s.authenticate(ctx, c, tokens); err != nil {
		c.Logout()
		return fail(err)
	}

	s.client = c
	if err := s.machine.transition(eventConnected, "connected to "+addr); err != nil {
		c.Logout()
		return err
	}

	// Async protocol-level errors drive the session back to disconnected.
	go s.watch()
	return nil
}

// authenticate runs basic LOGIN or the XOAUTH2 exchange depending on the
// account's auth type.
func (s *Session) authenticate(ctx context.Context, c *client.Client, tokens *auth.TokenManager) error {
	if !s.account.IsOAuth2() {
		if err := c.Login(s.account.Email, s.account.Password); err != nil {
			s.log.Error("IMAP login failed for %s: %v", s.account.Email, err)
			return fmt.Errorf("login error: %v", err)
		}
		return nil
	}

	token, err := tokens.GetAccessToken(ctx, auth.TokenRequest{
		ClientID:     s.account.ClientID,
		RefreshToken: s.account.RefreshToken,
	})
	if err != nil {
		if auth.IsReauthRequired(err) {
			s.hooks.log("warn", "OAuth2 refresh token rejected for %s, re-authentication required", s.account.Email)
			if s.hooks.OnTokenExpired != nil {
				s.hooks.OnTokenExpired()
			}
			return fmt.Errorf("re-authentication required: %v", err)
		}
		return fmt.Errorf("token exchange error: %v", err)
	}

	if err := c.Authenticate(auth.NewXOAuth2(s.account.Email, token)); err != nil {
		return fmt.Errorf("XOAUTH2 authentication failed: %v", err)
	}
	return nil
}

// watch waits for the connection to drop and records the transition.
func (s *Session) watch() {
	<-s.client.LoggedOut()
	if s.machine.status() == models.StatusConnected {
		s.log.Warn("Connection lost for %s (%s)", s.account.Email, s.account.Incoming.Host)
		_ = s.machine.transition(eventConnectionLost, "connection lost")
	}
}

// Close logs out and marks the session disconnected.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	if s.machine.status() == models.StatusConnected {
		_ = s.machine.transition(eventDisconnect, "logged out")
	}
	return err
}
