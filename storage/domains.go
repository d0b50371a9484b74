package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// placeholderDomain guards against persisting template/default values.
const placeholderDomain = "example.com"

// DomainStore persists discovered server configurations to a line-oriented
// flat file:
//
//	domain:imapHost:imapPort:imapSecure|smtpHost:smtpPort:smtpSecure
//
// Comment lines start with #, blank lines are ignored, and either field
// group may be empty. Every mutation rewrites the whole file; the format
// stays trivially greppable and duplicate keys cannot occur. All I/O
// failures degrade to an empty map or a silent no-op because the cache is
// a performance optimization, not a correctness requirement.
type DomainStore struct {
	path string
	log  *utils.Logger
	mu   sync.Mutex
}

// NewDomainStore creates a domain store writing to the given file path.
func NewDomainStore(path string, log *utils.Logger) *DomainStore {
	return &DomainStore{path: path, log: log}
}

// GetDomain returns the cached config for a domain, if present.
func (s *DomainStore) GetDomain(domain string) (*models.DiscoveredConfig, bool) {
	domains := s.GetDomains()
	cfg, ok := domains[normalizeDomain(domain)]
	return cfg, ok
}

// GetDomains parses the whole cache file. Malformed lines are skipped.
func (s *DomainStore) GetDomains() map[string]*models.DiscoveredConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// SaveDomain merges one discovered config into the file. Domains or hosts
// containing the placeholder domain are silently dropped, as are configs
// the line format cannot round-trip (POP3-only results).
func (s *DomainStore) SaveDomain(domain string, cfg *models.DiscoveredConfig) error {
	domain = normalizeDomain(domain)
	if domain == "" || cfg == nil || (cfg.IMAP == nil && cfg.SMTP == nil) {
		return nil
	}
	if containsPlaceholder(domain, cfg) {
		s.log.Debug("Refusing to cache placeholder domain entry for %s", domain)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	domains := s.readAll()
	domains[domain] = cfg
	s.writeAll(domains)
	return nil
}

// RemoveDomain drops a domain from the cache (forced re-discovery).
func (s *DomainStore) RemoveDomain(domain string) error {
	domain = normalizeDomain(domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	domains := s.readAll()
	if _, ok := domains[domain]; !ok {
		return nil
	}
	delete(domains, domain)
	s.writeAll(domains)
	return nil
}

// readAll must be called with the lock held.
func (s *DomainStore) readAll() map[string]*models.DiscoveredConfig {
	domains := make(map[string]*models.DiscoveredConfig)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read domain cache %s: %v", s.path, err)
		}
		return domains
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domain, cfg, ok := parseDomainLine(line)
		if !ok {
			s.log.Debug("Skipping malformed domain cache line: %q", line)
			continue
		}
		domains[domain] = cfg
	}
	return domains
}

// writeAll must be called with the lock held.
func (s *DomainStore) writeAll(domains map[string]*models.DiscoveredConfig) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		s.log.Warn("Failed to create domain cache directory: %v", err)
		return
	}

	keys := make([]string, 0, len(domains))
	for domain := range domains {
		keys = append(keys, domain)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("# domain:imapHost:imapPort:imapSecure|smtpHost:smtpPort:smtpSecure\n")
	for _, domain := range keys {
		sb.WriteString(formatDomainLine(domain, domains[domain]))
		sb.WriteString("\n")
	}

	if err := os.WriteFile(s.path, []byte(sb.String()), 0600); err != nil {
		s.log.Warn("Failed to write domain cache %s: %v", s.path, err)
	}
}

// parseDomainLine decodes one cache line.
func parseDomainLine(line string) (string, *models.DiscoveredConfig, bool) {
	imapPart, smtpPart, _ := strings.Cut(line, "|")

	fields := strings.Split(imapPart, ":")
	if len(fields) < 1 || fields[0] == "" {
		return "", nil, false
	}
	domain := normalizeDomain(fields[0])

	cfg := &models.DiscoveredConfig{}
	if len(fields) == 4 {
		server, ok := parseServerFields(fields[1:])
		if !ok {
			return "", nil, false
		}
		if server != nil {
			cfg.IMAP = server
		}
	} else if len(fields) != 1 {
		return "", nil, false
	}

	if smtpPart != "" {
		server, ok := parseServerFields(strings.Split(smtpPart, ":"))
		if !ok {
			return "", nil, false
		}
		if server != nil {
			cfg.SMTP = server
		}
	}

	if !cfg.HasAny() {
		return "", nil, false
	}
	return domain, cfg, true
}

// parseServerFields decodes host:port:secure. An all-empty group is valid
// and yields nil.
func parseServerFields(fields []string) (*models.ServerConfig, bool) {
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == "") {
		return nil, true
	}
	if len(fields) != 3 || fields[0] == "" {
		return nil, false
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil || port <= 0 || port > 65535 {
		return nil, false
	}
	secure, err := strconv.ParseBool(fields[2])
	if err != nil {
		return nil, false
	}
	return &models.ServerConfig{Host: fields[0], Port: port, Secure: secure}, true
}

func formatDomainLine(domain string, cfg *models.DiscoveredConfig) string {
	var sb strings.Builder
	sb.WriteString(domain)
	if cfg.IMAP != nil {
		fmt.Fprintf(&sb, ":%s:%d:%t", cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.Secure)
	}
	sb.WriteString("|")
	if cfg.SMTP != nil {
		fmt.Fprintf(&sb, "%s:%d:%t", cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Secure)
	}
	return sb.String()
}

func containsPlaceholder(domain string, cfg *models.DiscoveredConfig) bool {
	if strings.Contains(domain, placeholderDomain) {
		return true
	}
	for _, server := range []*models.ServerConfig{cfg.IMAP, cfg.SMTP, cfg.POP3} {
		if server != nil && strings.Contains(server.Host, placeholderDomain) {
			return true
		}
	}
	return false
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
