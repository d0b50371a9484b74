package discovery

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// srvService binds one SRV service name to the protocol it discovers.
type srvService struct {
	Service  string
	Protocol string
	Secure   bool
	Port     int // default when the record reports 0
}

// srvServices are probed in order; secure variants first.
var srvServices = []srvService{
	{"imaps", models.ProtocolIMAP, true, 993},
	{"imap", models.ProtocolIMAP, false, 143},
	{"pop3s", models.ProtocolPOP3, true, 995},
	{"pop3", models.ProtocolPOP3, false, 110},
	{"submission", models.ProtocolSMTP, false, 587},
}

// guessPrefixes is the broad fixed list of conventional mail host names,
// including provider-specific extras seen in the wild.
var guessPrefixes = map[string][]string{
	models.ProtocolIMAP: {"imap.", "mail.", "imap4.", "imaps.", "webmail.", "secure.", "mx."},
	models.ProtocolSMTP: {"smtp.", "mail.", "smtps.", "submission.", "mx."},
	models.ProtocolPOP3: {"pop.", "pop3.", "mail.", "mx."},
}

// guessPorts lists port/secure pairs per protocol, preferred first.
var guessPorts = map[string][]models.ServerConfig{
	models.ProtocolIMAP: {{Port: 993, Secure: true}, {Port: 143, Secure: false}},
	models.ProtocolSMTP: {{Port: 465, Secure: true}, {Port: 587, Secure: false}},
	models.ProtocolPOP3: {{Port: 995, Secure: true}, {Port: 110, Secure: false}},
}

// DNSResolver discovers servers through SRV records, falling back to
// MX-derived and conventional hostname guessing. Lookup functions are
// injectable for tests.
type DNSResolver struct {
	Prober    *Prober
	LookupSRV func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupMX  func(ctx context.Context, name string) ([]*net.MX, error)

	ValidateTimeout    time.Duration
	MXTimeout          time.Duration
	GuessBudget        time.Duration
	ConsistencyTimeout time.Duration
}

// NewDNSResolver creates a resolver backed by the real DNS.
func NewDNSResolver(prober *Prober) *DNSResolver {
	var resolver net.Resolver
	return &DNSResolver{
		Prober:             prober,
		LookupSRV:          resolver.LookupSRV,
		LookupMX:           resolver.LookupMX,
		ValidateTimeout:    3 * time.Second,
		MXTimeout:          10 * time.Second,
		GuessBudget:        8 * time.Second,
		ConsistencyTimeout: 5 * time.Second,
	}
}

// Name implements Resolver.
func (r *DNSResolver) Name() string { return "dns" }

// Discover implements Resolver.
func (r *DNSResolver) Discover(ctx context.Context, domain string, logf LogFunc) (*models.DiscoveredConfig, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))

	cfg := r.discoverViaSRV(ctx, domain, logf)
	if !cfg.HasAny() {
		cfg = r.discoverViaGuessing(ctx, domain, logf)
	}
	if !cfg.HasAny() {
		return nil, nil
	}

	r.reconcileHostnames(ctx, cfg, logf)
	return cfg, nil
}

// discoverViaSRV walks the standard mail SRV services. Records are tried
// in RFC 2782 order and each candidate is live-validated; the first
// validated target wins per service type.
func (r *DNSResolver) discoverViaSRV(ctx context.Context, domain string, logf LogFunc) *models.DiscoveredConfig {
	cfg := &models.DiscoveredConfig{}

	for _, svc := range srvServices {
		if ctx.Err() != nil {
			return cfg
		}
		if protocolKnown(cfg, svc.Protocol) {
			continue
		}

		_, records, err := r.LookupSRV(ctx, svc.Service, "tcp", domain)
		if err != nil || len(records) == 0 {
			continue
		}
		sortSRV(records)

		for _, record := range records {
			if ctx.Err() != nil {
				return cfg
			}
			host := strings.TrimSuffix(record.Target, ".")
			if host == "" {
				continue
			}
			port := int(record.Port)
			if port == 0 {
				port = svc.Port
			}
			validation := r.Prober.ValidateEmailHost(ctx, host, port, svc.Secure, r.ValidateTimeout)
			if !validation.IsValid {
				continue
			}
			if validation.RealHostname != "" {
				host = validation.RealHostname
			}
			logf("SRV _%s._tcp.%s -> %s:%d", svc.Service, domain, host, port)
			setProtocol(cfg, svc.Protocol, &models.ServerConfig{Host: host, Port: port, Secure: svc.Secure})
			break
		}
	}

	return cfg
}

// discoverViaGuessing unions MX-derived hostnames with the fixed guessing
// list and probes them. IMAP is tried before POP3, and guessing stops at
// the first validated host per protocol; the search is greedy, trading
// completeness for discovery latency.
func (r *DNSResolver) discoverViaGuessing(ctx context.Context, domain string, logf LogFunc) *models.DiscoveredConfig {
	cfg := &models.DiscoveredConfig{}
	mxBase := r.mxBaseDomain(ctx, domain, logf)

	deadline := time.Now().Add(r.GuessBudget)

	for _, protocol := range []string{models.ProtocolIMAP, models.ProtocolSMTP, models.ProtocolPOP3} {
		if protocol == models.ProtocolPOP3 && cfg.IMAP != nil {
			// IMAP preferred; no point probing POP3 once IMAP validated.
			continue
		}

		hosts := guessHosts(domain, mxBase, protocol)
	hostLoop:
		for _, host := range hosts {
			if ctx.Err() != nil || time.Now().After(deadline) {
				return cfg
			}
			for _, portCfg := range guessPorts[protocol] {
				validation := r.Prober.ValidateEmailHost(ctx, host, portCfg.Port, portCfg.Secure, r.ValidateTimeout)
				if !validation.IsValid {
					continue
				}
				realHost := host
				if validation.RealHostname != "" {
					realHost = validation.RealHostname
				}
				logf("guessed %s server %s:%d", protocol, realHost, portCfg.Port)
				setProtocol(cfg, protocol, &models.ServerConfig{
					Host:   realHost,
					Port:   portCfg.Port,
					Secure: portCfg.Secure,
				})
				break hostLoop
			}
		}
	}

	return cfg
}

// mxBaseDomain resolves the domain's best MX record and returns the base
// domain its exchange lives under, or "" when MX yields nothing useful.
func (r *DNSResolver) mxBaseDomain(ctx context.Context, domain string, logf LogFunc) string {
	mxCtx, cancel := context.WithTimeout(ctx, r.MXTimeout)
	defer cancel()

	records, err := r.LookupMX(mxCtx, domain)
	if err != nil || len(records) == 0 {
		return ""
	}
	sort.Slice(records, func(a, b int) bool { return records[a].Pref < records[b].Pref })

	exchange := strings.TrimSuffix(records[0].Host, ".")
	base := baseDomain(exchange)
	if base != "" && base != domain {
		logf("MX exchange %s suggests base domain %s", exchange, base)
	}
	return base
}

// guessHosts builds the candidate hostname list for one protocol:
// MX-derived siblings first, then the conventional patterns on the
// domain itself, deduplicated in order.
func guessHosts(domain, mxBase, protocol string) []string {
	var hosts []string
	seen := make(map[string]bool)
	add := func(host string) {
		if host != "" && !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}

	if mxBase != "" && mxBase != domain {
		for _, prefix := range guessPrefixes[protocol] {
			add(prefix + mxBase)
		}
	}
	for _, prefix := range guessPrefixes[protocol] {
		add(prefix + domain)
	}
	return hosts
}

// reconcileHostnames detects IMAP and SMTP resolving to different base
// domains, a common guessing artifact of split-domain setups, and tries
// to align SMTP onto IMAP's domain. Best-effort: the alternate host only
// overrides when it also live-validates.
func (r *DNSResolver) reconcileHostnames(ctx context.Context, cfg *models.DiscoveredConfig, logf LogFunc) {
	if cfg.IMAP == nil || cfg.SMTP == nil {
		return
	}
	imapBase := baseDomain(cfg.IMAP.Host)
	smtpBase := baseDomain(cfg.SMTP.Host)
	if imapBase == "" || imapBase == smtpBase {
		return
	}

	candidate := "mail." + imapBase
	if r.Prober.TestConnection(ctx, candidate, cfg.SMTP.Port, cfg.SMTP.Secure, r.ConsistencyTimeout).Success {
		logf("aligning SMTP host %s -> %s to match IMAP domain", cfg.SMTP.Host, candidate)
		cfg.SMTP.Host = candidate
	}
}

// sortSRV orders records per RFC 2782: ascending priority, then
// descending weight as the tiebreak.
func sortSRV(records []*net.SRV) {
	sort.SliceStable(records, func(a, b int) bool {
		if records[a].Priority != records[b].Priority {
			return records[a].Priority < records[b].Priority
		}
		return records[a].Weight > records[b].Weight
	})
}

// baseDomain keeps the last two labels of a hostname.
func baseDomain(host string) string {
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func protocolKnown(cfg *models.DiscoveredConfig, protocol string) bool {
	switch protocol {
	case models.ProtocolIMAP:
		return cfg.IMAP != nil
	case models.ProtocolSMTP:
		return cfg.SMTP != nil
	case models.ProtocolPOP3:
		return cfg.POP3 != nil
	}
	return false
}

func setProtocol(cfg *models.DiscoveredConfig, protocol string, server *models.ServerConfig) {
	switch protocol {
	case models.ProtocolIMAP:
		cfg.IMAP = server
	case models.ProtocolSMTP:
		cfg.SMTP = server
	case models.ProtocolPOP3:
		cfg.POP3 = server
	}
}
