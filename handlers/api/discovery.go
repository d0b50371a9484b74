package api

import (
	"strings"

	"github.com/HALDRO/IMAP-Viewer-sub001/discovery"
	"github.com/HALDRO/IMAP-Viewer-sub001/storage"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/gofiber/fiber/v2"
)

// DiscoveryHandler exposes the server auto-discovery pipeline.
type DiscoveryHandler struct {
	discoverer *discovery.Discoverer
	domains    *storage.DomainStore
}

// NewDiscoveryHandler creates a new discovery handler.
func NewDiscoveryHandler(discoverer *discovery.Discoverer, domains *storage.DomainStore) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoverer: discoverer,
		domains:    domains,
	}
}

// Discover runs the discovery pipeline for a domain. ?force=true evicts
// any cached entry first; ?quick=true skips Exchange autodiscover.
func (h *DiscoveryHandler) Discover(c *fiber.Ctx) error {
	domain := strings.ToLower(strings.TrimSpace(c.Params("domain")))
	if domain == "" || !strings.Contains(domain, ".") {
		return utils.BadRequestError("A valid domain is required", nil)
	}

	opts := discovery.Options{
		Force:                    c.QueryBool("force"),
		SkipExchangeAutodiscover: c.QueryBool("quick"),
	}

	logf := func(format string, v ...interface{}) {
		utils.Log.Debug("[discovery "+domain+"] "+format, v...)
	}

	result := h.discoverer.Discover(c.Context(), domain, logf, opts)
	if result == nil {
		return utils.NotFoundError("No mail servers found for "+domain, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"domain":  domain,
		"config":  result,
	})
}

// GetCached returns the cached configuration for a domain without probing.
func (h *DiscoveryHandler) GetCached(c *fiber.Ctx) error {
	domain := strings.ToLower(strings.TrimSpace(c.Params("domain")))
	if domain == "" {
		return utils.BadRequestError("Domain required", nil)
	}

	cfg, ok := h.domains.GetDomain(domain)
	if !ok {
		return utils.NotFoundError("Domain not in cache", nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"domain":  domain,
		"config":  cfg,
	})
}

// ListCached returns every cached domain configuration.
func (h *DiscoveryHandler) ListCached(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"domains": h.domains.GetDomains(),
	})
}

// RemoveCached evicts a domain from the cache.
func (h *DiscoveryHandler) RemoveCached(c *fiber.Ctx) error {
	domain := strings.ToLower(strings.TrimSpace(c.Params("domain")))
	if domain == "" {
		return utils.BadRequestError("Domain required", nil)
	}

	if err := h.domains.RemoveDomain(domain); err != nil {
		return utils.InternalServerError("Failed to remove domain", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Domain removed from cache",
	})
}
