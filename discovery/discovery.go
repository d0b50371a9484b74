// Package discovery resolves an email domain to its server configuration
// through three strategies run concurrently: a static provider table, DNS
// SRV/MX/guessing, and Exchange Autodiscover. The first strategy to yield
// a usable config wins and the rest are cancelled.
package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// LogFunc receives human-readable progress lines from resolvers. A nil
// LogFunc is valid and discards everything.
type LogFunc func(format string, v ...interface{})

// Resolver is one discovery strategy. Expected negative outcomes (no
// server found) return (nil, nil); only genuinely unexpected failures
// return an error, and the orchestrator treats those as nil too.
type Resolver interface {
	Name() string
	Discover(ctx context.Context, domain string, logf LogFunc) (*models.DiscoveredConfig, error)
}

// DomainCache is the persistence contract the orchestrator consumes.
type DomainCache interface {
	GetDomain(domain string) (*models.DiscoveredConfig, bool)
	SaveDomain(domain string, cfg *models.DiscoveredConfig) error
	RemoveDomain(domain string) error
}

// Options gate which resolvers run and whether the cache is bypassed.
type Options struct {
	Force                    bool
	SkipProviderList         bool
	SkipDNSGuessing          bool
	SkipExchangeAutodiscover bool
}

// Discoverer orchestrates the three resolvers against the domain cache.
// One instance per process; domain-cache mutations are serialized through
// it.
type Discoverer struct {
	cache     DomainCache
	resolvers []Resolver
	log       *utils.Logger

	// Timeout bounds one whole discovery attempt.
	Timeout time.Duration
}

// NewDiscoverer builds the production discovery pipeline from config.
func NewDiscoverer(cfg *config.Config, cache DomainCache, log *utils.Logger) *Discoverer {
	prober := NewProber()

	dns := NewDNSResolver(prober)
	dns.ValidateTimeout = cfg.Discovery.ValidateTimeout()
	dns.MXTimeout = cfg.Discovery.MXTimeout()
	dns.GuessBudget = cfg.Discovery.GuessBudget()
	dns.ConsistencyTimeout = cfg.Discovery.ConsistencyTimeout()

	exchange := NewExchangeResolver(prober)
	exchange.Timeout = cfg.Discovery.AutodiscoverTimeout()
	exchange.ValidateTimeout = cfg.Discovery.ValidateTimeout()

	return &Discoverer{
		cache: cache,
		resolvers: []Resolver{
			&ProviderResolver{Prober: prober, Timeout: cfg.Discovery.ProbeTimeout()},
			dns,
			exchange,
		},
		log:     log,
		Timeout: 30 * time.Second,
	}
}

// NewDiscovererWithResolvers is the seam tests use to inject fakes.
func NewDiscovererWithResolvers(cache DomainCache, log *utils.Logger, resolvers ...Resolver) *Discoverer {
	return &Discoverer{
		cache:     cache,
		resolvers: resolvers,
		log:       log,
		Timeout:   30 * time.Second,
	}
}

// Discover resolves a domain to its server configuration. A cache hit
// short-circuits unless opts.Force evicts the entry first. Enabled
// resolvers run concurrently; exactly one non-nil result is accepted (the
// first to arrive) and later results are discarded even if successful.
// Returns nil, never an error, for total discovery failure.
func (d *Discoverer) Discover(ctx context.Context, domain string, logf LogFunc, opts Options) *models.DiscoveredConfig {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil
	}
	logf = d.wrapLog(domain, logf)

	if opts.Force {
		if err := d.cache.RemoveDomain(domain); err != nil {
			d.log.Warn("Failed to evict %s from domain cache: %v", domain, err)
		}
	} else if cached, ok := d.cache.GetDomain(domain); ok {
		logf("cache hit")
		return cached
	}

	resolvers := d.enabledResolvers(opts)
	if len(resolvers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	results := make(chan *models.DiscoveredConfig, len(resolvers))
	for _, resolver := range resolvers {
		go func(resolver Resolver) {
			cfg, err := resolver.Discover(ctx, domain, logf)
			if err != nil {
				if ctx.Err() == nil {
					logf("%s resolver failed: %v", resolver.Name(), err)
				}
				results <- nil
				return
			}
			if cfg.HasAny() {
				results <- cfg
			} else {
				results <- nil
			}
		}(resolver)
	}

	for range resolvers {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-results:
			if cfg == nil {
				continue
			}
			// Winner take all: cancel remaining resolvers cooperatively.
			// In-flight network calls are abandoned, not killed.
			cancel()
			if err := d.cache.SaveDomain(domain, cfg); err != nil {
				d.log.Warn("Failed to cache discovered config for %s: %v", domain, err)
			}
			return cfg
		}
	}

	logf("all resolvers exhausted, nothing found")
	return nil
}

// QuickDiscover always skips Exchange Autodiscover, the slowest and least
// commonly needed strategy, for low-latency paths.
func (d *Discoverer) QuickDiscover(ctx context.Context, domain string, logf LogFunc) *models.DiscoveredConfig {
	return d.Discover(ctx, domain, logf, Options{SkipExchangeAutodiscover: true})
}

func (d *Discoverer) enabledResolvers(opts Options) []Resolver {
	var enabled []Resolver
	for _, resolver := range d.resolvers {
		switch resolver.Name() {
		case "provider-list":
			if opts.SkipProviderList {
				continue
			}
		case "dns":
			if opts.SkipDNSGuessing {
				continue
			}
		case "exchange-autodiscover":
			if opts.SkipExchangeAutodiscover {
				continue
			}
		}
		enabled = append(enabled, resolver)
	}
	return enabled
}

// wrapLog mirrors resolver progress into the process logger and makes the
// caller's callback nil-safe.
func (d *Discoverer) wrapLog(domain string, logf LogFunc) LogFunc {
	return func(format string, v ...interface{}) {
		d.log.Debug("discovery[%s]: "+format, append([]interface{}{domain}, v...)...)
		if logf != nil {
			logf(format, v...)
		}
	}
}
