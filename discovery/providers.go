package discovery

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// providerEntry is one row of the static provider table.
type providerEntry struct {
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
}

func (e providerEntry) config() *models.DiscoveredConfig {
	cfg := &models.DiscoveredConfig{
		IMAP: &models.ServerConfig{Host: e.IMAPHost, Port: e.IMAPPort, Secure: true},
	}
	if e.SMTPHost != "" {
		cfg.SMTP = &models.ServerConfig{Host: e.SMTPHost, Port: e.SMTPPort, Secure: true}
	}
	return cfg
}

// knownProviders maps exact domains to their mail servers.
var knownProviders = map[string]providerEntry{
	"gmail.com":      {"imap.gmail.com", 993, "smtp.gmail.com", 465},
	"googlemail.com": {"imap.gmail.com", 993, "smtp.gmail.com", 465},
	"outlook.com":    {"outlook.office365.com", 993, "smtp.office365.com", 587},
	"hotmail.com":    {"outlook.office365.com", 993, "smtp.office365.com", 587},
	"live.com":       {"outlook.office365.com", 993, "smtp.office365.com", 587},
	"msn.com":        {"outlook.office365.com", 993, "smtp.office365.com", 587},
	"office365.com":  {"outlook.office365.com", 993, "smtp.office365.com", 587},
	"yahoo.com":      {"imap.mail.yahoo.com", 993, "smtp.mail.yahoo.com", 465},
	"yahoo.co.uk":    {"imap.mail.yahoo.com", 993, "smtp.mail.yahoo.com", 465},
	"aol.com":        {"imap.aol.com", 993, "smtp.aol.com", 465},
	"icloud.com":     {"imap.mail.me.com", 993, "smtp.mail.me.com", 587},
	"me.com":         {"imap.mail.me.com", 993, "smtp.mail.me.com", 587},
	"mac.com":        {"imap.mail.me.com", 993, "smtp.mail.me.com", 587},
	"yandex.ru":      {"imap.yandex.ru", 993, "smtp.yandex.ru", 465},
	"yandex.com":     {"imap.yandex.com", 993, "smtp.yandex.com", 465},
	"mail.ru":        {"imap.mail.ru", 993, "smtp.mail.ru", 465},
	"bk.ru":          {"imap.mail.ru", 993, "smtp.mail.ru", 465},
	"list.ru":        {"imap.mail.ru", 993, "smtp.mail.ru", 465},
	"inbox.ru":       {"imap.mail.ru", 993, "smtp.mail.ru", 465},
	"zoho.com":       {"imap.zoho.com", 993, "smtp.zoho.com", 465},
	"fastmail.com":   {"imap.fastmail.com", 993, "smtp.fastmail.com", 465},
	"gmx.com":        {"imap.gmx.com", 993, "mail.gmx.com", 465},
	"gmx.de":         {"imap.gmx.net", 993, "mail.gmx.net", 465},
	"gmx.net":        {"imap.gmx.net", 993, "mail.gmx.net", 465},
	"web.de":         {"imap.web.de", 993, "smtp.web.de", 587},
	"t-online.de":    {"secureimap.t-online.de", 993, "securesmtp.t-online.de", 465},
	"rambler.ru":     {"imap.rambler.ru", 993, "smtp.rambler.ru", 465},
	"protonmail.com": {"127.0.0.1", 1143, "127.0.0.1", 1025}, // ProtonMail Bridge
	"proton.me":      {"127.0.0.1", 1143, "127.0.0.1", 1025},
}

// wildcardProviders match domain families behind one provider, e.g. every
// regional Outlook domain. Patterns use * for one-or-more leading labels.
var wildcardProviders = []struct {
	Pattern string
	Entry   providerEntry
}{
	{"*.outlook.com", providerEntry{"outlook.office365.com", 993, "smtp.office365.com", 587}},
	{"*.hotmail.*", providerEntry{"outlook.office365.com", 993, "smtp.office365.com", 587}},
	{"*.live.*", providerEntry{"outlook.office365.com", 993, "smtp.office365.com", 587}},
	{"*.yahoo.*", providerEntry{"imap.mail.yahoo.com", 993, "smtp.mail.yahoo.com", 465}},
	{"*.onmicrosoft.com", providerEntry{"outlook.office365.com", 993, "smtp.office365.com", 587}},
}

// fallbackPrefixes are tried against the bare domain when no provider
// entry validates.
var fallbackPrefixes = []string{"imap.", "mail.", "mx.", "pop."}

// ProviderResolver resolves a domain against the static provider table,
// then wildcard patterns, then conventional subdomain fallbacks. Table
// entries are not trusted blindly; each must pass a live reachability
// check before it is returned.
type ProviderResolver struct {
	Prober  *Prober
	Timeout time.Duration
}

// Name implements Resolver.
func (r *ProviderResolver) Name() string { return "provider-list" }

// Discover implements Resolver.
func (r *ProviderResolver) Discover(ctx context.Context, domain string, logf LogFunc) (*models.DiscoveredConfig, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))

	if entry, ok := knownProviders[domain]; ok {
		logf("provider table hit for %s: %s", domain, entry.IMAPHost)
		if cfg := r.validated(ctx, entry, logf); cfg != nil {
			return cfg, nil
		}
	}

	for _, wp := range wildcardProviders {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !matchWildcard(wp.Pattern, domain) {
			continue
		}
		logf("wildcard provider %s matched %s", wp.Pattern, domain)
		if cfg := r.validated(ctx, wp.Entry, logf); cfg != nil {
			return cfg, nil
		}
	}

	// Last resort: conventional subdomains at 993/secure.
	for _, prefix := range fallbackPrefixes {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		host := prefix + domain
		if r.Prober.TestConnection(ctx, host, 993, true, r.Timeout).Success {
			logf("fallback pattern %s reachable", host)
			return &models.DiscoveredConfig{
				IMAP: &models.ServerConfig{Host: host, Port: 993, Secure: true},
			}, nil
		}
	}

	return nil, nil
}

// validated live-checks a table entry's IMAP endpoint before trusting it.
func (r *ProviderResolver) validated(ctx context.Context, entry providerEntry, logf LogFunc) *models.DiscoveredConfig {
	result := r.Prober.TestConnection(ctx, entry.IMAPHost, entry.IMAPPort, true, r.Timeout)
	if !result.Success {
		logf("provider entry %s:%d failed validation: %s", entry.IMAPHost, entry.IMAPPort, result.Error)
		return nil
	}
	return entry.config()
}

// matchWildcard translates a *.provider.com style pattern to a regexp and
// matches the domain against it.
func matchWildcard(pattern, domain string) bool {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[a-z0-9.-]+`)
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return false
	}
	return re.MatchString(domain)
}
