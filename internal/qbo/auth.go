package qbo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/billrelay/backend/internal/token"
)

const (
	authorizeEndpoint = "https://appcenter.intuit.com/connect/oauth2"
	tokenEndpoint     = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	// ScopeAccounting is the only scope this service needs.
	ScopeAccounting = "com.intuit.quickbooks.accounting"
)

// AuthClient implements the Intuit OAuth2 flows: authorization URL, code
// exchange, refresh. All responses funnel through one adapter into the
// normalized token.TokenExchangeResult.
type AuthClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	http         *http.Client
}

func NewAuthClient(clientID, clientSecret, redirectURI string) *AuthClient {
	return &AuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *AuthClient) AuthorizationURL(scopes, state string) string {
	q := url.Values{}
	q.Set("client_id", a.clientID)
	q.Set("response_type", "code")
	q.Set("scope", scopes)
	q.Set("redirect_uri", a.redirectURI)
	q.Set("state", state)
	return authorizeEndpoint + "?" + q.Encode()
}

func (a *AuthClient) ExchangeCode(ctx context.Context, code, realmID string) (*token.TokenExchangeResult, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.redirectURI)
	return a.tokenRequest(ctx, form)
}

func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*token.TokenExchangeResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return a.tokenRequest(ctx, form)
}

func (a *AuthClient) tokenRequest(ctx context.Context, form url.Values) (*token.TokenExchangeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error building token request: %w", err)
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("token endpoint error %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	return adaptTokenResponse(body)
}

// adaptTokenResponse maps whichever field names the authorization server used
// onto the normalized result. Intuit's documented names come first; the
// variants have been observed across SDK versions.
func adaptTokenResponse(body []byte) (*token.TokenExchangeResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error decoding token response: %w", err)
	}

	res := &token.TokenExchangeResult{
		AccessToken:      probeString(raw, "access_token", "accessToken"),
		RefreshToken:     probeString(raw, "refresh_token", "refreshToken"),
		AccessExpiresIn:  probeSeconds(raw, "expires_in", "expiresIn", "access_token_expires_in"),
		RefreshExpiresIn: probeSeconds(raw, "x_refresh_token_expires_in", "refresh_token_expires_in", "refreshTokenExpiresIn"),
	}

	if res.AccessToken == "" || res.RefreshToken == "" {
		return nil, fmt.Errorf("token response missing access or refresh token")
	}
	return res, nil
}

func probeString(raw map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		if v, ok := raw[name]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s
			}
		}
	}
	return ""
}

func probeSeconds(raw map[string]json.RawMessage, names ...string) time.Duration {
	for _, name := range names {
		v, ok := raw[name]
		if !ok {
			continue
		}
		var n int64
		if json.Unmarshal(v, &n) == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		// some SDKs serialize lifetimes as strings
		var s string
		if json.Unmarshal(v, &s) == nil {
			if parsed, err := strconv.ParseInt(s, 10, 64); err == nil && parsed > 0 {
				return time.Duration(parsed) * time.Second
			}
		}
	}
	return 0
}
