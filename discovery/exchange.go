package discovery

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// autodiscoverRequestBody is the fixed Autodiscover envelope. The address
// is synthetic; Exchange only uses its domain part to route the lookup.
const autodiscoverRequestBody = `<?xml version="1.0" encoding="utf-8"?>
<Autodiscover xmlns="http://schemas.microsoft.com/exchange/autodiscover/mobilesync/requestschema/2006">
  <Request>
    <EMailAddress>user@%s</EMailAddress>
    <AcceptableResponseSchema>http://schemas.microsoft.com/exchange/autodiscover/mobilesync/responseschema/2006</AcceptableResponseSchema>
  </Request>
</Autodiscover>`

// Autodiscover responses vary by vendor, so only the Server/Type pair is
// required; everything else in the XML is tolerated and ignored.
var (
	serverTagRe = regexp.MustCompile(`(?is)<Server>\s*([^<>\s]+)\s*</Server>`)
	typeTagRe   = regexp.MustCompile(`(?is)<Type>\s*([^<>\s]+)\s*</Type>`)
)

// ExchangeResolver discovers servers through Microsoft's Autodiscover
// protocol: SRV-published and conventional endpoints are POSTed the
// autodiscovery XML concurrently and the first usable response wins.
type ExchangeResolver struct {
	Prober    *Prober
	Client    *http.Client
	LookupSRV func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)

	Timeout         time.Duration
	ValidateTimeout time.Duration
}

// NewExchangeResolver creates a resolver backed by the real network.
func NewExchangeResolver(prober *Prober) *ExchangeResolver {
	var resolver net.Resolver
	return &ExchangeResolver{
		Prober:          prober,
		Client:          &http.Client{Timeout: 10 * time.Second},
		LookupSRV:       resolver.LookupSRV,
		Timeout:         10 * time.Second,
		ValidateTimeout: 3 * time.Second,
	}
}

// Name implements Resolver.
func (r *ExchangeResolver) Name() string { return "exchange-autodiscover" }

// Discover implements Resolver.
func (r *ExchangeResolver) Discover(ctx context.Context, domain string, logf LogFunc) (*models.DiscoveredConfig, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	endpoints := r.candidateEndpoints(ctx, domain, logf)
	if len(endpoints) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	type probeResult struct {
		endpoint string
		server   string
	}
	results := make(chan probeResult, len(endpoints))

	for _, endpoint := range endpoints {
		go func(endpoint string) {
			server, err := r.queryEndpoint(ctx, endpoint, domain)
			if err != nil {
				// A single endpoint's transport failure must not abort
				// sibling attempts.
				logf("autodiscover endpoint %s failed: %v", endpoint, err)
				results <- probeResult{endpoint: endpoint}
				return
			}
			results <- probeResult{endpoint: endpoint, server: server}
		}(endpoint)
	}

	for range endpoints {
		select {
		case <-ctx.Done():
			return nil, nil
		case res := <-results:
			if res.server == "" {
				continue
			}
			server := &models.ServerConfig{Host: res.server, Port: 993, Secure: true}
			if !r.Prober.TestConnection(ctx, server.Host, server.Port, server.Secure, r.ValidateTimeout).Success {
				logf("autodiscover result %s failed live validation", res.server)
				continue
			}
			logf("autodiscover via %s -> %s", res.endpoint, res.server)
			return &models.DiscoveredConfig{IMAP: server}, nil
		}
	}

	return nil, nil
}

// candidateEndpoints gathers Autodiscover URLs from _autodiscover._tcp
// SRV records plus the two conventional locations.
func (r *ExchangeResolver) candidateEndpoints(ctx context.Context, domain string, logf LogFunc) []string {
	var endpoints []string
	seen := make(map[string]bool)
	add := func(url string) {
		if !seen[url] {
			seen[url] = true
			endpoints = append(endpoints, url)
		}
	}

	_, records, err := r.LookupSRV(ctx, "autodiscover", "tcp", domain)
	if err == nil && len(records) > 0 {
		sortSRV(records)
		for _, record := range records {
			host := strings.TrimSuffix(record.Target, ".")
			if host == "" {
				continue
			}
			logf("autodiscover SRV target %s:%d", host, record.Port)
			add(fmt.Sprintf("https://%s/autodiscover/autodiscover.xml", host))
		}
	}

	add(fmt.Sprintf("https://autodiscover.%s/autodiscover/autodiscover.xml", domain))
	add(fmt.Sprintf("https://%s/autodiscover/autodiscover.xml", domain))
	return endpoints
}

// queryEndpoint POSTs the autodiscovery envelope and extracts the first
// Server/Type pair whose Type is IMAP.
func (r *ExchangeResolver) queryEndpoint(ctx context.Context, endpoint, domain string) (string, error) {
	body := fmt.Sprintf(autodiscoverRequestBody, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d from %s", resp.StatusCode, endpoint)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return parseAutodiscoverResponse(string(payload)), nil
}

// parseAutodiscoverResponse pulls the IMAP server out of a response body.
// Server and Type tags are extracted by position and paired by index; no
// schema validation is attempted since responses vary by vendor. Returns
// "" when the response carries no usable IMAP Server/Type pair.
func parseAutodiscoverResponse(body string) string {
	servers := serverTagRe.FindAllStringSubmatch(body, -1)
	types := typeTagRe.FindAllStringSubmatch(body, -1)

	for i, typeMatch := range types {
		if !strings.EqualFold(strings.TrimSpace(typeMatch[1]), "IMAP") {
			continue
		}
		if i < len(servers) {
			return strings.TrimSpace(servers[i][1])
		}
		if len(servers) > 0 {
			return strings.TrimSpace(servers[0][1])
		}
	}
	return ""
}
