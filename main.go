package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/auth"
	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/discovery"
	"github.com/HALDRO/IMAP-Viewer-sub001/handlers/api"
	"github.com/HALDRO/IMAP-Viewer-sub001/imap"
	"github.com/HALDRO/IMAP-Viewer-sub001/middleware"
	"github.com/HALDRO/IMAP-Viewer-sub001/proxy"
	"github.com/HALDRO/IMAP-Viewer-sub001/storage"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	utils.Log.SetLevel(utils.ParseLevel(cfg.Server.LogLevel))

	if err := os.MkdirAll(cfg.Storage.DataDir, 0700); err != nil {
		utils.Log.Error("Failed to create data directory: %v", err)
		os.Exit(1)
	}

	// Storage
	domainStore := storage.NewDomainStore(filepath.Join(cfg.Storage.DataDir, cfg.Storage.DomainsFile), utils.Log)
	accountStore, err := storage.NewAccountStore(filepath.Join(cfg.Storage.DataDir, cfg.Storage.AccountsFile), utils.Log)
	if err != nil {
		utils.Log.Error("Failed to open account store: %v", err)
		os.Exit(1)
	}

	// Core services
	discoverer := discovery.NewDiscoverer(cfg, domainStore, utils.Log)
	tokens := auth.NewTokenManager(cfg.OAuth.TokenEndpoint, utils.Log)
	manager := imap.NewManager(cfg, tokens, utils.Log)
	tester := proxy.NewTester(utils.Log)

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			// Check for AppError
			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				utils.Log.Error("Application error: %v", appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())  // Recover from panics
	app.Use(logger.New())   // Request logging
	app.Use(compress.New()) // Response compression

	// Add rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	// Initialize API handlers
	authHandler := api.NewAuthHandler(cfg)
	discoveryHandler := api.NewDiscoveryHandler(discoverer, domainStore)
	accountHandler := api.NewAccountHandler(accountStore, discoverer, manager)
	emailHandler := api.NewEmailHandler(manager)
	proxyHandler := api.NewProxyHandler(tester)

	// Public routes
	app.Post("/api/login", authHandler.Login)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Protected routes group
	apiRoutes := app.Group("/api", api.SessionMiddleware(cfg))
	{
		// Discovery routes
		apiRoutes.Post("/discovery/:domain", discoveryHandler.Discover)
		apiRoutes.Get("/discovery", discoveryHandler.ListCached)
		apiRoutes.Get("/discovery/:domain", discoveryHandler.GetCached)
		apiRoutes.Delete("/discovery/:domain", discoveryHandler.RemoveCached)

		// Account routes
		apiRoutes.Post("/accounts", accountHandler.CreateAccount)
		apiRoutes.Get("/accounts", accountHandler.GetAccounts)
		apiRoutes.Get("/accounts/:id", accountHandler.GetAccount)
		apiRoutes.Put("/accounts/:id", accountHandler.UpdateAccount)
		apiRoutes.Delete("/accounts/:id", accountHandler.DeleteAccount)
		apiRoutes.Post("/accounts/:id/connect", accountHandler.ConnectAccount)
		apiRoutes.Post("/accounts/:id/disconnect", accountHandler.DisconnectAccount)

		// Mailbox and email routes
		apiRoutes.Get("/accounts/:id/mailboxes", emailHandler.GetMailboxes)
		apiRoutes.Get("/accounts/:id/mailboxes/+/emails", emailHandler.GetEmails)
		apiRoutes.Get("/accounts/:id/emails/:uid", emailHandler.GetEmail)
		apiRoutes.Post("/accounts/:id/emails/:uid/seen", emailHandler.MarkSeen)
		apiRoutes.Delete("/accounts/:id/emails/:uid/seen", emailHandler.MarkUnseen)
		apiRoutes.Delete("/accounts/:id/emails/:uid", emailHandler.DeleteEmail)
		apiRoutes.Post("/accounts/:id/emails/delete", emailHandler.DeleteEmails)

		// Proxy test routes
		apiRoutes.Post("/proxy/test", proxyHandler.StartTest)
		apiRoutes.Get("/proxy/test/:session", proxyHandler.GetResults)
		apiRoutes.Delete("/proxy/test/:session", proxyHandler.CancelTest)
	}

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "Not found",
		})
	})

	// Close IMAP sessions cleanly on shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		utils.Log.Info("Shutting down...")
		manager.StopAll()
		app.Shutdown()
	}()

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
