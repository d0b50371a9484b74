package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver yields a fixed result after an optional delay and records
// whether its context was cancelled.
type fakeResolver struct {
	name   string
	result *models.DiscoveredConfig
	err    error
	delay  time.Duration

	mu        sync.Mutex
	called    bool
	cancelled bool
}

func (f *fakeResolver) Name() string { return f.name }

func (f *fakeResolver) Discover(ctx context.Context, domain string, logf LogFunc) (*models.DiscoveredConfig, error) {
	f.mu.Lock()
	f.called = true
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
		return f.result, f.err
	case <-ctx.Done():
		f.mu.Lock()
		f.cancelled = true
		f.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (f *fakeResolver) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// fakeCache is an in-memory DomainCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.DiscoveredConfig
	saves   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.DiscoveredConfig)}
}

func (c *fakeCache) GetDomain(domain string) (*models.DiscoveredConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.entries[domain]
	return cfg, ok
}

func (c *fakeCache) SaveDomain(domain string, cfg *models.DiscoveredConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = cfg
	c.saves++
	return nil
}

func (c *fakeCache) RemoveDomain(domain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, domain)
	return nil
}

func testConfig(host string) *models.DiscoveredConfig {
	return &models.DiscoveredConfig{
		IMAP: &models.ServerConfig{Host: host, Port: 993, Secure: true},
	}
}

func quietLogger() *utils.Logger {
	return utils.NewLogger(utils.ERROR)
}

func TestDiscoverFirstResultWins(t *testing.T) {
	fast := &fakeResolver{name: "provider-list", result: testConfig("imap.fast.com"), delay: 10 * time.Millisecond}
	slow := &fakeResolver{name: "dns", result: testConfig("imap.slow.com"), delay: 2 * time.Second}

	d := NewDiscovererWithResolvers(newFakeCache(), quietLogger(), fast, slow)
	cfg := d.Discover(context.Background(), "example.org", nil, Options{})

	require.NotNil(t, cfg)
	assert.Equal(t, "imap.fast.com", cfg.IMAP.Host)
	assert.Eventually(t, slow.wasCancelled, time.Second, 10*time.Millisecond,
		"losing resolver should be cancelled once a winner arrives")
}

func TestDiscoverFailedResolverDoesNotWin(t *testing.T) {
	failing := &fakeResolver{name: "provider-list", err: context.DeadlineExceeded}
	working := &fakeResolver{name: "dns", result: testConfig("imap.example.org"), delay: 20 * time.Millisecond}

	d := NewDiscovererWithResolvers(newFakeCache(), quietLogger(), failing, working)
	cfg := d.Discover(context.Background(), "example.org", nil, Options{})

	require.NotNil(t, cfg)
	assert.Equal(t, "imap.example.org", cfg.IMAP.Host)
}

func TestDiscoverTotalFailureReturnsNil(t *testing.T) {
	empty := &fakeResolver{name: "provider-list"}
	failing := &fakeResolver{name: "dns", err: context.DeadlineExceeded}

	cache := newFakeCache()
	d := NewDiscovererWithResolvers(cache, quietLogger(), empty, failing)
	cfg := d.Discover(context.Background(), "example.org", nil, Options{})

	assert.Nil(t, cfg)
	assert.Equal(t, 0, cache.saves, "nothing should be cached on failure")
}

func TestDiscoverCacheHitShortCircuits(t *testing.T) {
	cache := newFakeCache()
	cached := testConfig("imap.cached.org")
	require.NoError(t, cache.SaveDomain("example.org", cached))

	resolver := &fakeResolver{name: "dns", result: testConfig("imap.live.org")}
	d := NewDiscovererWithResolvers(cache, quietLogger(), resolver)

	cfg := d.Discover(context.Background(), "Example.ORG ", nil, Options{})

	require.NotNil(t, cfg)
	assert.Equal(t, "imap.cached.org", cfg.IMAP.Host)
	assert.False(t, resolver.called, "resolvers must not run on a cache hit")
}

func TestDiscoverForceEvictsCache(t *testing.T) {
	cache := newFakeCache()
	require.NoError(t, cache.SaveDomain("example.org", testConfig("imap.stale.org")))

	resolver := &fakeResolver{name: "dns", result: testConfig("imap.fresh.org")}
	d := NewDiscovererWithResolvers(cache, quietLogger(), resolver)

	cfg := d.Discover(context.Background(), "example.org", nil, Options{Force: true})

	require.NotNil(t, cfg)
	assert.Equal(t, "imap.fresh.org", cfg.IMAP.Host)

	saved, ok := cache.GetDomain("example.org")
	require.True(t, ok)
	assert.Equal(t, "imap.fresh.org", saved.IMAP.Host)
}

func TestDiscoverSuccessIsCached(t *testing.T) {
	cache := newFakeCache()
	resolver := &fakeResolver{name: "dns", result: testConfig("imap.example.org")}
	d := NewDiscovererWithResolvers(cache, quietLogger(), resolver)

	d.Discover(context.Background(), "example.org", nil, Options{})

	saved, ok := cache.GetDomain("example.org")
	require.True(t, ok)
	assert.Equal(t, "imap.example.org", saved.IMAP.Host)
}

func TestDiscoverEmptyDomain(t *testing.T) {
	d := NewDiscovererWithResolvers(newFakeCache(), quietLogger(),
		&fakeResolver{name: "dns", result: testConfig("imap.example.org")})

	assert.Nil(t, d.Discover(context.Background(), "  ", nil, Options{}))
}

func TestQuickDiscoverSkipsExchange(t *testing.T) {
	exchange := &fakeResolver{name: "exchange-autodiscover", result: testConfig("imap.exchange.org")}
	dns := &fakeResolver{name: "dns", result: testConfig("imap.dns.org"), delay: 10 * time.Millisecond}

	d := NewDiscovererWithResolvers(newFakeCache(), quietLogger(), exchange, dns)
	cfg := d.QuickDiscover(context.Background(), "example.org", nil)

	require.NotNil(t, cfg)
	assert.Equal(t, "imap.dns.org", cfg.IMAP.Host)
	assert.False(t, exchange.called, "exchange resolver must be skipped in quick mode")
}

func TestDiscoverAllResolversSkipped(t *testing.T) {
	d := NewDiscovererWithResolvers(newFakeCache(), quietLogger(),
		&fakeResolver{name: "provider-list", result: testConfig("a")},
		&fakeResolver{name: "dns", result: testConfig("b")},
		&fakeResolver{name: "exchange-autodiscover", result: testConfig("c")})

	cfg := d.Discover(context.Background(), "example.org", nil, Options{
		SkipProviderList:         true,
		SkipDNSGuessing:          true,
		SkipExchangeAutodiscover: true,
	})
	assert.Nil(t, cfg)
}
