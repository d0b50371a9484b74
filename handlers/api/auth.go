package api

import (
	"strings"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is how long an issued API token stays valid.
const tokenTTL = 24 * time.Hour

// GenerateToken issues a signed JWT for the given client name.
func GenerateToken(name, secret string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   name,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// SessionMiddleware validates the Bearer token and stores the client name
// in the request locals.
func SessionMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return utils.UnauthorizedError("Missing bearer token", nil)
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			return utils.UnauthorizedError("Invalid or expired token", err)
		}

		c.Locals("client", claims.Subject)
		return c.Next()
	}
}

// AuthHandler issues API tokens.
type AuthHandler struct {
	config *config.Config
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

// Login exchanges a client name for a signed token. There is no user
// database; the token only ties subsequent requests to a client name for
// logging.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return utils.BadRequestError("Client name required", nil)
	}

	token, err := GenerateToken(req.Name, h.config.JWT.Secret)
	if err != nil {
		return utils.InternalServerError("Failed to generate token", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}
