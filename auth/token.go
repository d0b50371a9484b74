// Package auth exchanges OAuth2 refresh tokens for access tokens and
// builds the XOAUTH2 SASL client the IMAP layer authenticates with.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// DefaultTokenEndpoint is the Microsoft common-tenant v2.0 token endpoint.
const DefaultTokenEndpoint = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

// expiryBuffer is subtracted from a token's lifetime before it counts as
// expired, so a token handed to a connect attempt cannot die mid-login.
const expiryBuffer = 5 * time.Minute

// reauthMarkers are the substrings in a token-endpoint error that signal
// the refresh token itself is dead and the user must re-authenticate.
var reauthMarkers = []string{"invalid_grant", "expired", "revoked", "unauthorized"}

// TokenRequest carries everything needed for one access-token exchange.
type TokenRequest struct {
	ClientID     string
	RefreshToken string
}

// cachedToken is valid only while now < ExpiresAt - expiryBuffer. Tokens
// are memory-only and cleared on process restart.
type cachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// tokenResponse is the JSON body of a successful refresh_token grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// TokenManager caches access tokens per (client id, refresh-token suffix)
// and refreshes them through the token endpoint when the buffer runs out.
// One instance per process, constructed at startup; the clock and HTTP
// client are injectable for tests.
type TokenManager struct {
	endpoint string
	client   *http.Client
	log      *utils.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

// NewTokenManager creates a token manager against the given endpoint; an
// empty endpoint selects the Microsoft default.
func NewTokenManager(endpoint string, log *utils.Logger) *TokenManager {
	if endpoint == "" {
		endpoint = DefaultTokenEndpoint
	}
	return &TokenManager{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
		now:      time.Now,
		cache:    make(map[string]cachedToken),
	}
}

// SetClock replaces the clock, for tests.
func (m *TokenManager) SetClock(now func() time.Time) { m.now = now }

// SetHTTPClient replaces the HTTP client, for tests and proxy routing.
func (m *TokenManager) SetHTTPClient(client *http.Client) { m.client = client }

// GetAccessToken returns a cached access token while it has more than the
// expiry buffer of validity left; otherwise it performs a refresh_token
// grant. On exchange failure the stale cache entry is evicted and the
// error is returned for the caller to classify.
func (m *TokenManager) GetAccessToken(ctx context.Context, req TokenRequest) (string, error) {
	if req.ClientID == "" || req.RefreshToken == "" {
		return "", fmt.Errorf("oauth2 exchange requires both client id and refresh token")
	}
	key := cacheKey(req)

	m.mu.Lock()
	cached, ok := m.cache[key]
	m.mu.Unlock()
	if ok && m.now().Before(cached.ExpiresAt.Add(-expiryBuffer)) {
		return cached.AccessToken, nil
	}

	token, expiresIn, err := m.exchange(ctx, req)
	if err != nil {
		m.mu.Lock()
		delete(m.cache, key)
		m.mu.Unlock()
		return "", err
	}

	m.mu.Lock()
	m.cache[key] = cachedToken{
		AccessToken: token,
		ExpiresAt:   m.now().Add(time.Duration(expiresIn) * time.Second),
	}
	m.mu.Unlock()

	m.log.Debug("Refreshed OAuth2 access token for client %s", req.ClientID)
	return token, nil
}

// exchange performs the refresh_token grant.
func (m *TokenManager) exchange(ctx context.Context, req TokenRequest) (string, int, error) {
	form := url.Values{
		"client_id":     {req.ClientID},
		"refresh_token": {req.RefreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {"https://outlook.office.com/IMAP.AccessAsUser.All offline_access"},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("token endpoint unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token exchange failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("malformed token response: %v", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	if parsed.ExpiresIn <= 0 {
		parsed.ExpiresIn = 3600
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}

// IsReauthRequired classifies a token exchange error: true means the
// refresh token is dead and retrying is pointless, the user has to
// authenticate again.
func IsReauthRequired(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range reauthMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// cacheKey uses only the last 10 characters of the refresh token so the
// full secret never sits in a map key.
func cacheKey(req TokenRequest) string {
	suffix := req.RefreshToken
	if len(suffix) > 10 {
		suffix = suffix[len(suffix)-10:]
	}
	return req.ClientID + ":" + suffix
}
