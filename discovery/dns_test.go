package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortSRV(t *testing.T) {
	records := []*net.SRV{
		{Target: "c.example.org.", Priority: 20, Weight: 100},
		{Target: "a.example.org.", Priority: 10, Weight: 10},
		{Target: "b.example.org.", Priority: 10, Weight: 50},
	}
	sortSRV(records)

	assert.Equal(t, "b.example.org.", records[0].Target, "lower priority first, higher weight breaks ties")
	assert.Equal(t, "a.example.org.", records[1].Target)
	assert.Equal(t, "c.example.org.", records[2].Target)
}

func TestBaseDomain(t *testing.T) {
	assert.Equal(t, "example.org", baseDomain("imap.example.org"))
	assert.Equal(t, "example.org", baseDomain("deep.mail.example.org."))
	assert.Equal(t, "example.org", baseDomain("example.org"))
	assert.Equal(t, "localhost", baseDomain("localhost"))
}

func TestGuessHosts(t *testing.T) {
	hosts := guessHosts("customer.org", "provider.net", models.ProtocolIMAP)
	require.NotEmpty(t, hosts)

	// MX-derived candidates come before the domain's own conventions.
	assert.Equal(t, "imap.provider.net", hosts[0])
	assert.Contains(t, hosts, "imap.customer.org")
	assert.Contains(t, hosts, "mail.customer.org")

	// No duplicates even when mxBase and domain share prefixes.
	seen := make(map[string]bool)
	for _, h := range hosts {
		assert.False(t, seen[h], "duplicate host %s", h)
		seen[h] = true
	}
}

// dnsTestResolver builds a DNSResolver whose network is entirely faked:
// only the given host resolves, secure ports refuse, plain ports accept.
func dnsTestResolver(t *testing.T, liveHost string, livePort int) *DNSResolver {
	t.Helper()
	prober := &Prober{
		LookupHost: func(ctx context.Context, host string) ([]string, error) {
			if host == liveHost {
				return []string{"192.0.2.1"}, nil
			}
			return nil, fmt.Errorf("no such host")
		},
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if addr == fmt.Sprintf("%s:%d", liveHost, livePort) {
				client, server := net.Pipe()
				t.Cleanup(func() { server.Close() })
				return client, nil
			}
			return nil, fmt.Errorf("connect: connection refused")
		},
	}
	return &DNSResolver{
		Prober: prober,
		LookupSRV: func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
			return "", nil, fmt.Errorf("no SRV")
		},
		LookupMX:           func(ctx context.Context, name string) ([]*net.MX, error) { return nil, fmt.Errorf("no MX") },
		ValidateTimeout:    time.Second,
		MXTimeout:          time.Second,
		GuessBudget:        5 * time.Second,
		ConsistencyTimeout: time.Second,
	}
}

func TestDiscoverViaSRV(t *testing.T) {
	r := dnsTestResolver(t, "imap.example.org", 143)
	r.LookupSRV = func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
		if service == "imap" && name == "example.org" {
			return "", []*net.SRV{{Target: "imap.example.org.", Port: 143}}, nil
		}
		return "", nil, fmt.Errorf("no SRV for _%s", service)
	}

	cfg, err := r.Discover(context.Background(), "example.org", func(string, ...interface{}) {})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.IMAP)
	assert.Equal(t, "imap.example.org", cfg.IMAP.Host)
	assert.Equal(t, 143, cfg.IMAP.Port)
	assert.False(t, cfg.IMAP.Secure)
}

func TestDiscoverViaSRVSkipsDeadTargets(t *testing.T) {
	r := dnsTestResolver(t, "backup.example.org", 143)
	r.LookupSRV = func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
		if service == "imap" {
			return "", []*net.SRV{
				{Target: "primary.example.org.", Port: 143, Priority: 10},
				{Target: "backup.example.org.", Port: 143, Priority: 20},
			}, nil
		}
		return "", nil, fmt.Errorf("no SRV")
	}

	cfg, err := r.Discover(context.Background(), "example.org", func(string, ...interface{}) {})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.IMAP)
	assert.Equal(t, "backup.example.org", cfg.IMAP.Host)
}

func TestDiscoverViaGuessingUsesMXBase(t *testing.T) {
	r := dnsTestResolver(t, "imap.hostingprovider.net", 143)
	r.LookupMX = func(ctx context.Context, name string) ([]*net.MX, error) {
		return []*net.MX{
			{Host: "mx2.hostingprovider.net.", Pref: 20},
			{Host: "mx1.hostingprovider.net.", Pref: 10},
		}, nil
	}

	cfg, err := r.Discover(context.Background(), "customer.org", func(string, ...interface{}) {})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.IMAP)
	assert.Equal(t, "imap.hostingprovider.net", cfg.IMAP.Host)
	assert.Equal(t, 143, cfg.IMAP.Port)
}

func TestDiscoverNothingFound(t *testing.T) {
	r := dnsTestResolver(t, "nowhere.invalid", 1)

	cfg, err := r.Discover(context.Background(), "example.org", func(string, ...interface{}) {})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestGuessingSkipsPOP3WhenIMAPFound(t *testing.T) {
	var pop3Probes int
	r := dnsTestResolver(t, "imap.example.org", 143)
	base := r.Prober.DialContext
	r.Prober.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if strings.Contains(addr, "pop") {
			pop3Probes++
		}
		return base(ctx, network, addr)
	}

	cfg, err := r.Discover(context.Background(), "example.org", func(string, ...interface{}) {})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.IMAP)
	assert.Nil(t, cfg.POP3)
	assert.Zero(t, pop3Probes, "POP3 hosts must not be probed once IMAP validated")
}
