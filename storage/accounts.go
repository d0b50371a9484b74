package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// AccountStore manages account persistence. Credentials live in a
// line-oriented accounts file:
//
//	email:password[:refreshToken[:clientId]]
//
// Presence of both refreshToken and clientId implies OAuth2. Discovered
// server configuration is kept per account in a JSON sidecar so it
// survives restarts without widening the credentials format.
type AccountStore struct {
	path string
	dir  string // sidecar directory
	log  *utils.Logger

	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// accountSidecar is the non-secret part of an account persisted as JSON.
type accountSidecar struct {
	Email    string                 `json:"email"`
	Incoming models.IncomingServer  `json:"incoming"`
	Outgoing *models.IncomingServer `json:"outgoing,omitempty"`
	ProxyID  string                 `json:"proxy_id,omitempty"`
}

// NewAccountStore loads the accounts file and sidecars from disk.
func NewAccountStore(path string, log *utils.Logger) (*AccountStore, error) {
	dir := filepath.Join(filepath.Dir(path), "accounts")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create accounts directory: %v", err)
	}

	s := &AccountStore{
		path:     path,
		dir:      dir,
		log:      log,
		accounts: make(map[string]*models.Account),
	}
	s.load()
	return s, nil
}

// load parses the accounts file. Malformed lines are skipped, not fatal.
func (s *AccountStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read accounts file %s: %v", s.path, err)
		}
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		account, ok := parseAccountLine(line)
		if !ok {
			s.log.Debug("Skipping malformed account line")
			continue
		}
		s.loadSidecar(account)
		s.accounts[account.ID] = account
	}
	s.log.Info("Loaded %d account(s) from %s", len(s.accounts), s.path)
}

// parseAccountLine decodes email:password[:refreshToken[:clientId]].
func parseAccountLine(line string) (*models.Account, bool) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 2 || !strings.Contains(parts[0], "@") || parts[1] == "" {
		return nil, false
	}

	account := &models.Account{
		ID:               models.AccountID(parts[0]),
		Email:            strings.TrimSpace(parts[0]),
		Password:         parts[1],
		AuthType:         models.AuthTypeBasic,
		ConnectionStatus: models.StatusDisconnected,
	}
	if len(parts) >= 3 {
		account.RefreshToken = parts[2]
	}
	if len(parts) == 4 {
		account.ClientID = parts[3]
	}
	if account.RefreshToken != "" && account.ClientID != "" {
		account.AuthType = models.AuthTypeOAuth2
	}
	return account, true
}

func formatAccountLine(a *models.Account) string {
	line := a.Email + ":" + a.Password
	if a.RefreshToken != "" || a.ClientID != "" {
		line += ":" + a.RefreshToken
	}
	if a.ClientID != "" {
		line += ":" + a.ClientID
	}
	return line
}

// List returns all accounts sorted by email. Accounts are copies, so
// callers can annotate them (live connection status) without racing
// other readers; persist changes through Update.
func (s *AccountStore) List() []*models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		clone := *account
		accounts = append(accounts, &clone)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts
}

// Get retrieves a copy of an account by ID.
func (s *AccountStore) Get(id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.New("account not found")
	}
	clone := *account
	return &clone, nil
}

// Create adds a new account. The ID is derived from the email address, so
// re-importing the same address is detected as a duplicate.
func (s *AccountStore) Create(account *models.Account) error {
	if account.Email == "" || !strings.Contains(account.Email, "@") {
		return errors.New("invalid email address")
	}
	account.ID = models.AccountID(account.Email)
	if account.AuthType == "" {
		account.AuthType = models.AuthTypeBasic
		if account.RefreshToken != "" && account.ClientID != "" {
			account.AuthType = models.AuthTypeOAuth2
		}
	}
	account.ConnectionStatus = models.StatusDisconnected

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists", account.Email)
	}
	clone := *account
	s.accounts[account.ID] = &clone
	s.saveAll()
	s.saveSidecar(&clone)
	return nil
}

// Update replaces an existing account record.
func (s *AccountStore) Update(account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; !exists {
		return errors.New("account not found")
	}
	clone := *account
	s.accounts[account.ID] = &clone
	s.saveAll()
	s.saveSidecar(&clone)
	return nil
}

// Delete removes an account and its sidecar.
func (s *AccountStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; !exists {
		return errors.New("account not found")
	}
	delete(s.accounts, id)
	s.saveAll()
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		s.log.Warn("Failed to remove account sidecar: %v", err)
	}
	return nil
}

// saveAll rewrites the accounts file. Must be called with the lock held.
func (s *AccountStore) saveAll() {
	accounts := make([]*models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })

	var sb strings.Builder
	for _, account := range accounts {
		sb.WriteString(formatAccountLine(account))
		sb.WriteString("\n")
	}
	if err := os.WriteFile(s.path, []byte(sb.String()), 0600); err != nil {
		s.log.Error("Failed to write accounts file %s: %v", s.path, err)
	}
}

// saveSidecar persists the non-secret account record. Must be called with
// the lock held.
func (s *AccountStore) saveSidecar(account *models.Account) {
	sidecar := accountSidecar{
		Email:    account.Email,
		Incoming: account.Incoming,
		Outgoing: account.Outgoing,
		ProxyID:  account.ProxyID,
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		s.log.Error("Failed to marshal account sidecar: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, account.ID+".json"), data, 0600); err != nil {
		s.log.Warn("Failed to write account sidecar: %v", err)
	}
}

// loadSidecar restores server configuration for a parsed account.
func (s *AccountStore) loadSidecar(account *models.Account) {
	data, err := os.ReadFile(filepath.Join(s.dir, account.ID+".json"))
	if err != nil {
		return
	}
	var sidecar accountSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		s.log.Warn("Failed to unmarshal account sidecar for %s: %v", account.Email, err)
		return
	}
	account.Incoming = sidecar.Incoming
	account.Outgoing = sidecar.Outgoing
	account.ProxyID = sidecar.ProxyID
}
