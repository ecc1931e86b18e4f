package crm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/store"
)

// TokenState classifies a stored OAuth token by wall-clock expiry.
type TokenState int

const (
	TokenValid TokenState = iota
	TokenExpiringSoon
	TokenInvalid
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpiringSoon:
		return "expiring-soon"
	default:
		return "invalid"
	}
}

// EvaluateToken classifies a token against now and the refresh window.
func EvaluateToken(t store.Token, now time.Time, refreshWindow time.Time) TokenState {
	switch {
	case t.Expired(now):
		return TokenInvalid
	case !t.ExpiresAt.After(refreshWindow):
		return TokenExpiringSoon
	default:
		return TokenValid
	}
}

// TokenManager resolves a usable access token per (user, platform).
// Lifecycle: valid tokens are returned as-is; expiring-soon tokens are
// refreshed when a refresh token exists; anything else is an auth error
// surfaced before any LLM work starts.
type TokenManager struct {
	Store         *store.Store
	Providers     config.ProvidersConfig
	RefreshWindow time.Duration
	Logger        *log.Logger
	Client        *http.Client

	now func() time.Time
}

// NewTokenManager wires the manager with sane defaults.
func NewTokenManager(st *store.Store, providers config.ProvidersConfig, window time.Duration) *TokenManager {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &TokenManager{
		Store:         st,
		Providers:     providers,
		RefreshWindow: window,
		Logger:        log.New(log.Writer(), "[TOKEN] ", log.LstdFlags),
		Client:        &http.Client{Timeout: 30 * time.Second},
		now:           time.Now,
	}
}

// Ensure returns a usable token for the platform or ErrAuthRequired.
func (m *TokenManager) Ensure(ctx context.Context, userID, platform string) (store.Token, error) {
	tok, ok, err := m.Store.LatestToken(ctx, userID, platform)
	if err != nil {
		return store.Token{}, err
	}
	if !ok {
		return store.Token{}, fmt.Errorf("%w: no %s token stored", ErrAuthRequired, platform)
	}

	now := m.now()
	switch EvaluateToken(tok, now, now.Add(m.RefreshWindow)) {
	case TokenValid:
		return tok, nil
	case TokenExpiringSoon:
		refreshed, err := m.refresh(ctx, tok)
		if err != nil {
			// Still usable until actual expiry; log and keep going.
			m.Logger.Printf("refresh failed for %s token: %v", platform, err)
			return tok, nil
		}
		return refreshed, nil
	default:
		if tok.RefreshToken != "" {
			refreshed, err := m.refresh(ctx, tok)
			if err == nil {
				return refreshed, nil
			}
			m.Logger.Printf("refresh of expired %s token failed: %v", platform, err)
		}
		return store.Token{}, fmt.Errorf("%w: %s token expired at %s", ErrAuthRequired, platform, tok.ExpiresAt.Format(time.RFC3339))
	}
}

// refresh exchanges the refresh token at the platform token endpoint and
// stores the result as a new row (insert-only token history).
func (m *TokenManager) refresh(ctx context.Context, tok store.Token) (store.Token, error) {
	if tok.RefreshToken == "" {
		return store.Token{}, fmt.Errorf("no refresh token")
	}

	var tokenURL, clientID, clientSecret string
	switch tok.Platform {
	case PlatformSalesforce:
		tokenURL = m.Providers.Salesforce.TokenURL
		clientID = m.Providers.Salesforce.ClientID
		clientSecret = m.Providers.Salesforce.ClientSecret
	case PlatformHubSpot:
		tokenURL = m.Providers.HubSpot.TokenURL
		clientID = m.Providers.HubSpot.ClientID
		clientSecret = m.Providers.HubSpot.ClientSecret
	default:
		return store.Token{}, fmt.Errorf("unsupported platform: %s", tok.Platform)
	}
	if clientID == "" || clientSecret == "" {
		return store.Token{}, fmt.Errorf("%s oauth client not configured", tok.Platform)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tok.RefreshToken)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return store.Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.Client.Do(req)
	if err != nil {
		return store.Token{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return store.Token{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		InstanceURL  string `json:"instance_url"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := jsonDecode(resp.Body, &out); err != nil {
		return store.Token{}, err
	}
	if out.AccessToken == "" {
		return store.Token{}, fmt.Errorf("token endpoint returned no access token")
	}

	next := store.Token{
		UserID:       tok.UserID,
		Platform:     tok.Platform,
		AccessToken:  out.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  tok.InstanceURL,
		ExpiresAt:    m.now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	if out.RefreshToken != "" {
		next.RefreshToken = out.RefreshToken
	}
	if out.InstanceURL != "" {
		next.InstanceURL = out.InstanceURL
	}
	if out.ExpiresIn <= 0 {
		next.ExpiresAt = m.now().Add(time.Hour)
	}

	id, err := m.Store.SaveToken(ctx, next)
	if err != nil {
		return store.Token{}, err
	}
	next.ID = id
	m.Logger.Printf("refreshed %s token for user %s", tok.Platform, tok.UserID)
	return next, nil
}
