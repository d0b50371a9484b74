package proxy

import (
	"net"
	"testing"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureDisabledGoesDirect(t *testing.T) {
	var lines []string
	logf := func(format string, v ...interface{}) { lines = append(lines, format) }

	res, err := Configure(config.ProxyConfig{}, logf)
	require.NoError(t, err)
	require.NotNil(t, res.Dialer)
	assert.Empty(t, res.ProxyUsed)
	assert.NotEmpty(t, lines)
}

func TestConfigureEnabledWithoutAddressGoesDirect(t *testing.T) {
	res, err := Configure(config.ProxyConfig{Enabled: true}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Dialer)
	assert.Empty(t, res.ProxyUsed)
}

func TestConfigureSOCKS5(t *testing.T) {
	res, err := Configure(config.ProxyConfig{
		Enabled: true,
		Address: "127.0.0.1:1080",
		User:    "u",
		Pass:    "p",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Dialer)
	assert.Equal(t, "127.0.0.1:1080", res.ProxyUsed)
}

func TestForAccountUsesNamedProxy(t *testing.T) {
	cfg := &config.Config{
		Proxies: map[string]config.ProxyConfig{
			"work": {Address: "10.0.0.1:1080"},
		},
	}
	account := &models.Account{Email: "a@b.com", ProxyID: "work"}

	res, err := ForAccount(account, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:1080", res.ProxyUsed)
}

func TestForAccountFallsBackToGlobalDefault(t *testing.T) {
	cfg := &config.Config{
		Proxy: config.ProxyConfig{Enabled: true, Address: "10.0.0.2:1080"},
	}

	res, err := ForAccount(&models.Account{Email: "a@b.com"}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:1080", res.ProxyUsed)

	// No global proxy either: direct connection.
	res, err = ForAccount(&models.Account{Email: "a@b.com"}, &config.Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.ProxyUsed)
}

func TestForAccountUnknownProxyIDErrors(t *testing.T) {
	account := &models.Account{Email: "a@b.com", ProxyID: "gone"}

	_, err := ForAccount(account, &config.Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
}

func TestTesterUnknownSession(t *testing.T) {
	tester := NewTester(utils.NewLogger(utils.ERROR))

	_, _, ok := tester.Results("no-such-session")
	assert.False(t, ok)

	// Cancelling an unknown token must be a no-op, not a panic.
	tester.Cancel("no-such-session")
}

func TestTesterReportsFailures(t *testing.T) {
	// A listener that is immediately closed guarantees a refused connect.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	tester := NewTester(utils.NewLogger(utils.ERROR))
	tester.timeout = 2 * time.Second

	token := tester.Start([]config.ProxyConfig{{Address: deadAddr}})
	require.NotEmpty(t, token)

	var results []TestResult
	require.Eventually(t, func() bool {
		var done bool
		var ok bool
		results, done, ok = tester.Results(token)
		return ok && done
	}, 10*time.Second, 50*time.Millisecond)

	require.Len(t, results, 1)
	assert.Equal(t, deadAddr, results[0].Address)
	assert.False(t, results[0].Working)
	assert.NotEmpty(t, results[0].Error)
}

func TestTesterCancelStopsSession(t *testing.T) {
	tester := NewTester(utils.NewLogger(utils.ERROR))
	tester.timeout = 5 * time.Second

	// Unroutable TEST-NET address keeps the dial pending long enough to
	// observe the cancellation.
	proxies := make([]config.ProxyConfig, 30)
	for i := range proxies {
		proxies[i] = config.ProxyConfig{Address: "192.0.2.1:1080"}
	}

	token := tester.Start(proxies)
	tester.Cancel(token)

	require.Eventually(t, func() bool {
		_, done, ok := tester.Results(token)
		return ok && done
	}, 15*time.Second, 50*time.Millisecond)

	results, _, _ := tester.Results(token)
	assert.Less(t, len(results), len(proxies), "cancelled session must not run every batch")
}
