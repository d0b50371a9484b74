// Package imap manages authenticated, proxy-aware protocol sessions per
// account and exposes mailbox-lock-scoped fetch and mutation operations.
package imap

import (
	"context"
	"fmt"
	"sync"

	"github.com/HALDRO/IMAP-Viewer-sub001/auth"
	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/proxy"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// Manager owns every live session, keyed by account ID.
type Manager struct {
	cfg    *config.Config
	tokens *auth.TokenManager
	log    *utils.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, tokens *auth.TokenManager, log *utils.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		tokens:   tokens,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Connect opens a session for the account. Non-IMAP accounts are rejected
// immediately. An existing session for the same account is closed first.
func (m *Manager) Connect(ctx context.Context, account *models.Account, hooks Hooks) (*Session, error) {
	if account.Incoming.Protocol != models.ProtocolIMAP {
		return nil, fmt.Errorf("account %s is configured for %s, only imap is supported", account.Email, account.Incoming.Protocol)
	}
	if account.Incoming.Host == "" {
		return nil, fmt.Errorf("account %s has no incoming server configured", account.Email)
	}

	log := m.log.WithField("account", account.Email)

	if existing, err := m.Session(account.ID); err == nil {
		log.Debug("Closing stale session before reconnect")
		existing.Close()
	}

	session := &Session{
		account:      account,
		hooks:        hooks,
		log:          log,
		warmupBudget: m.cfg.IMAP.WarmupHeaderBudget(),
	}
	// Connection status lives in the state machine and is read through
	// Session.Status; the shared account record is never written here.
	session.machine = newStateMachine(func(status models.ConnectionStatus, details string) {
		if hooks.OnStatusChange != nil {
			hooks.OnStatusChange(status, details)
		}
	})

	resolution, err := proxy.ForAccount(account, m.cfg, func(format string, v ...interface{}) {
		hooks.log("info", format, v...)
	})
	if err != nil {
		return nil, fmt.Errorf("proxy configuration error: %v", err)
	}

	if err := session.connect(ctx, m.tokens, resolution); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[account.ID] = session
	m.mu.Unlock()

	log.Info("Connected to %s", account.Incoming.Addr())
	return session, nil
}

// Session returns the live session for an account ID.
func (m *Manager) Session(accountID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[accountID]
	if !ok {
		return nil, fmt.Errorf("no session for account %s", accountID)
	}
	return session, nil
}

// Disconnect closes and forgets an account's session.
func (m *Manager) Disconnect(accountID string) {
	m.mu.Lock()
	session, ok := m.sessions[accountID]
	delete(m.sessions, accountID)
	m.mu.Unlock()

	if ok {
		session.Close()
	}
}

// InitialEmailLimit is the configured size of the warm-up header page.
func (m *Manager) InitialEmailLimit() int {
	return m.cfg.IMAP.InitialEmailLimit
}

// StopAll closes every session. Sessions are copied under the lock and
// closed outside it so slow logouts don't block other operations.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
