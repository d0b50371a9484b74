package api

import (
	"strings"

	"github.com/HALDRO/IMAP-Viewer-sub001/discovery"
	"github.com/HALDRO/IMAP-Viewer-sub001/imap"
	"github.com/HALDRO/IMAP-Viewer-sub001/models"
	"github.com/HALDRO/IMAP-Viewer-sub001/storage"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/gofiber/fiber/v2"
)

// AccountHandler handles account management
type AccountHandler struct {
	storage    *storage.AccountStore
	discoverer *discovery.Discoverer
	manager    *imap.Manager
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountStore *storage.AccountStore, discoverer *discovery.Discoverer, manager *imap.Manager) *AccountHandler {
	return &AccountHandler{
		storage:    accountStore,
		discoverer: discoverer,
		manager:    manager,
	}
}

// createAccountRequest is the JSON body for account creation.
type createAccountRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ProxyID      string `json:"proxy_id"`

	// Optional manual server config; skips discovery when set.
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Secure *bool  `json:"secure"`
}

// CreateAccount creates a new email account. Server settings come from
// the request when given, otherwise from the discovery pipeline.
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return utils.BadRequestError("A valid email address is required", nil)
	}

	account := &models.Account{
		ID:               models.AccountID(req.Email),
		Email:            req.Email,
		Password:         req.Password,
		RefreshToken:     req.RefreshToken,
		ClientID:         req.ClientID,
		ProxyID:          req.ProxyID,
		AuthType:         models.AuthTypeBasic,
		ConnectionStatus: models.StatusDisconnected,
	}
	if req.RefreshToken != "" && req.ClientID != "" {
		account.AuthType = models.AuthTypeOAuth2
	}

	if account.Password == "" && !account.IsOAuth2() {
		return utils.BadRequestError("Either a password or OAuth2 credentials are required", nil)
	}

	if req.Host != "" {
		secure := true
		if req.Secure != nil {
			secure = *req.Secure
		}
		port := req.Port
		if port == 0 {
			port = 993
		}
		account.Incoming = models.IncomingServer{
			ServerConfig: models.ServerConfig{Host: req.Host, Port: port, Secure: secure},
			Protocol:     models.ProtocolIMAP,
		}
	} else {
		logf := func(format string, v ...interface{}) {
			utils.Log.Debug("[discovery "+account.Domain()+"] "+format, v...)
		}
		discovered := h.discoverer.Discover(c.Context(), account.Domain(), logf, discovery.Options{})
		if discovered == nil || discovered.IMAP == nil {
			return utils.NotFoundError("Could not discover mail servers for "+account.Domain(), nil)
		}
		account.Incoming = models.IncomingServer{
			ServerConfig: *discovered.IMAP,
			Protocol:     models.ProtocolIMAP,
		}
		if discovered.SMTP != nil {
			account.Outgoing = &models.IncomingServer{
				ServerConfig: *discovered.SMTP,
				Protocol:     models.ProtocolSMTP,
			}
		}
	}

	if err := h.storage.Create(account); err != nil {
		return utils.BadRequestError("Failed to create account", err)
	}

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"account": account,
	})
}

// GetAccounts retrieves all accounts
func (h *AccountHandler) GetAccounts(c *fiber.Ctx) error {
	accounts := h.storage.List()
	for _, acc := range accounts {
		if session, err := h.manager.Session(acc.ID); err == nil {
			acc.ConnectionStatus = session.Status()
		}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"accounts": accounts,
	})
}

// GetAccount retrieves a specific account
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	account, err := h.account(c)
	if err != nil {
		return err
	}
	if session, err := h.manager.Session(account.ID); err == nil {
		account.ConnectionStatus = session.Status()
	}

	return c.JSON(fiber.Map{
		"success": true,
		"account": account,
	})
}

// UpdateAccount updates an existing account's credentials or server config
func (h *AccountHandler) UpdateAccount(c *fiber.Ctx) error {
	account, err := h.account(c)
	if err != nil {
		return err
	}

	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	if req.Password != "" {
		account.Password = req.Password
	}
	if req.RefreshToken != "" {
		account.RefreshToken = req.RefreshToken
	}
	if req.ClientID != "" {
		account.ClientID = req.ClientID
	}
	if req.RefreshToken != "" && req.ClientID != "" {
		account.AuthType = models.AuthTypeOAuth2
	}
	if req.ProxyID != "" {
		account.ProxyID = req.ProxyID
	}
	if req.Host != "" {
		account.Incoming.Host = req.Host
	}
	if req.Port != 0 {
		account.Incoming.Port = req.Port
	}
	if req.Secure != nil {
		account.Incoming.Secure = *req.Secure
	}

	if err := h.storage.Update(account); err != nil {
		return utils.InternalServerError("Failed to update account", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"account": account,
	})
}

// DeleteAccount deletes an account and closes its session
func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	account, err := h.account(c)
	if err != nil {
		return err
	}

	h.manager.Disconnect(account.ID)
	if err := h.storage.Delete(account.ID); err != nil {
		return utils.InternalServerError("Failed to delete account", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Account deleted successfully",
	})
}

// ConnectAccount establishes the IMAP session for an account and returns
// the warm-up payload: mailbox tree, default mailbox and its first page of
// headers.
func (h *AccountHandler) ConnectAccount(c *fiber.Ctx) error {
	account, err := h.account(c)
	if err != nil {
		return err
	}

	hooks := imap.Hooks{
		OnStatusChange: func(status models.ConnectionStatus, details string) {
			utils.Log.Info("Account %s status: %s %s", account.Email, status, details)
		},
		OnLog: func(message, level string) {
			utils.Log.Debug("[imap %s] %s: %s", account.Email, level, message)
		},
		OnTokenExpired: func() {
			utils.Log.Warn("Account %s needs re-authentication", account.Email)
		},
	}

	session, err := h.manager.Connect(c.Context(), account, hooks)
	if err != nil {
		return utils.InternalServerError("Failed to connect account", err)
	}

	data, err := session.InitializeAccountData(uint32(h.manager.InitialEmailLimit()))
	if err != nil {
		return utils.InternalServerError("Failed to initialize account data", err)
	}
	account.ConnectionStatus = session.Status()

	return c.JSON(fiber.Map{
		"success": true,
		"account": account,
		"data":    data,
	})
}

// DisconnectAccount closes the account's IMAP session.
func (h *AccountHandler) DisconnectAccount(c *fiber.Ctx) error {
	account, err := h.account(c)
	if err != nil {
		return err
	}

	h.manager.Disconnect(account.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Account disconnected",
	})
}

// account resolves the :id param into a stored account.
func (h *AccountHandler) account(c *fiber.Ctx) (*models.Account, error) {
	accountID := c.Params("id")
	if accountID == "" {
		return nil, utils.BadRequestError("Account ID required", nil)
	}
	account, err := h.storage.Get(accountID)
	if err != nil {
		return nil, utils.NotFoundError("Account not found", err)
	}
	return account, nil
}
