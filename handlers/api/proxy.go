package api

import (
	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/proxy"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/gofiber/fiber/v2"
)

// ProxyHandler runs bulk proxy test sessions.
type ProxyHandler struct {
	tester *proxy.Tester
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(tester *proxy.Tester) *ProxyHandler {
	return &ProxyHandler{tester: tester}
}

// proxyEntry mirrors config.ProxyConfig for the request body.
type proxyEntry struct {
	Address string `json:"address"`
	User    string `json:"user"`
	Pass    string `json:"pass"`
}

// StartTest begins testing the submitted proxies and returns a session token.
func (h *ProxyHandler) StartTest(c *fiber.Ctx) error {
	var req struct {
		Proxies []proxyEntry `json:"proxies"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if len(req.Proxies) == 0 {
		return utils.BadRequestError("At least one proxy is required", nil)
	}

	proxies := make([]config.ProxyConfig, 0, len(req.Proxies))
	for _, p := range req.Proxies {
		if p.Address == "" {
			return utils.BadRequestError("Every proxy needs an address", nil)
		}
		proxies = append(proxies, config.ProxyConfig{
			Enabled: true,
			Address: p.Address,
			User:    p.User,
			Pass:    p.Pass,
		})
	}

	token := h.tester.Start(proxies)

	return c.Status(202).JSON(fiber.Map{
		"success": true,
		"session": token,
	})
}

// GetResults polls a test session for progress.
func (h *ProxyHandler) GetResults(c *fiber.Ctx) error {
	token := c.Params("session")
	results, done, ok := h.tester.Results(token)
	if !ok {
		return utils.NotFoundError("Unknown test session", nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"done":    done,
		"results": results,
	})
}

// CancelTest aborts an in-flight test session.
func (h *ProxyHandler) CancelTest(c *fiber.Ctx) error {
	h.tester.Cancel(c.Params("session"))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Test session cancelled",
	})
}
