package imap

import (
	"context"
	"testing"

	"github.com/HALDRO/IMAP-Viewer-sub001/auth"
	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{}
	cfg.IMAP.InitialEmailLimit = 50
	cfg.IMAP.WarmupHeaderBudgetMs = 2000
	log := utils.NewLogger(utils.ERROR)
	return NewManager(cfg, auth.NewTokenManager("", log), log)
}

func TestManagerRejectsNonIMAPAccount(t *testing.T) {
	m := testManager(t)

	account := &models.Account{
		ID:    "acc-1",
		Email: "user@example.org",
		Incoming: models.IncomingServer{
			ServerConfig: models.ServerConfig{Host: "pop.example.org", Port: 995, Secure: true},
			Protocol:     models.ProtocolPOP3,
		},
	}

	_, err := m.Connect(context.Background(), account, Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only imap")
}

func TestManagerRejectsMissingHost(t *testing.T) {
	m := testManager(t)

	account := &models.Account{
		ID:       "acc-1",
		Email:    "user@example.org",
		Incoming: models.IncomingServer{Protocol: models.ProtocolIMAP},
	}

	_, err := m.Connect(context.Background(), account, Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no incoming server")
}

func TestManagerConnectFailureDoesNotWriteAccountRecord(t *testing.T) {
	m := testManager(t)

	var statuses []models.ConnectionStatus
	hooks := Hooks{
		OnStatusChange: func(status models.ConnectionStatus, details string) {
			statuses = append(statuses, status)
		},
	}

	account := &models.Account{
		ID:    "acc-1",
		Email: "user@example.org",
		Incoming: models.IncomingServer{
			// Port 1 is never listening, so the dial fails immediately.
			ServerConfig: models.ServerConfig{Host: "127.0.0.1", Port: 1},
			Protocol:     models.ProtocolIMAP,
		},
	}

	_, err := m.Connect(context.Background(), account, hooks)
	require.Error(t, err)

	// Status flows through the hook and Session.Status; the shared
	// account record is left alone.
	assert.Equal(t, []models.ConnectionStatus{models.StatusConnecting, models.StatusDisconnected}, statuses)
	assert.Equal(t, models.ConnectionStatus(""), account.ConnectionStatus)
}

func TestManagerConnectUnknownProxyFails(t *testing.T) {
	m := testManager(t)

	account := &models.Account{
		ID:      "acc-1",
		Email:   "user@example.org",
		ProxyID: "nope",
		Incoming: models.IncomingServer{
			ServerConfig: models.ServerConfig{Host: "127.0.0.1", Port: 1},
			Protocol:     models.ProtocolIMAP,
		},
	}

	_, err := m.Connect(context.Background(), account, Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy")
}

func TestManagerSessionLookupMiss(t *testing.T) {
	m := testManager(t)

	_, err := m.Session("never-connected")
	assert.Error(t, err)
}

func TestManagerDisconnectUnknownIsNoop(t *testing.T) {
	m := testManager(t)
	m.Disconnect("never-connected")
	m.StopAll()
}
