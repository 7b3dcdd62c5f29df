package idp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"portico/internal/config"
	"portico/internal/gateway"
	"portico/internal/session"
	"portico/internal/tenant"
	"portico/pkg/logging"
)

// ErrMissingCode means the callback route was entered without a one-time
// authorization code. There is no recovery other than restarting login.
var ErrMissingCode = errors.New("authorization code missing from callback URL")

// TokenResponse is the gateway authn token endpoint's response shape. The
// access token may be absent; the cookie-based path carries credentials
// in response cookies instead.
type TokenResponse struct {
	AccessToken            string `json:"accessToken,omitempty"`
	AccessTokenExpiration  string `json:"accessTokenExpiration"`
	RefreshTokenExpiration string `json:"refreshTokenExpiration"`
}

// Credential converts the response to the standard token form. The zero
// Expiry means the backend reported no access-token expiration.
func (r *TokenResponse) Credential() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken: r.AccessToken,
		TokenType:   "Bearer",
	}
	if t, err := time.Parse(time.RFC3339, r.AccessTokenExpiration); err == nil {
		token.Expiry = t
	}
	return token
}

// Exchanger performs the authorization-code exchange against the gateway.
type Exchanger struct {
	store  *session.Store
	client *gateway.Client
	cfg    config.PlatformConfig
}

// NewExchanger creates an exchanger bound to the given session store and
// gateway client.
func NewExchanger(store *session.Store, client *gateway.Client, cfg config.PlatformConfig) *Exchanger {
	return &Exchanger{store: store, client: client, cfg: cfg}
}

// Exchange handles the identity-provider redirect callback. It extracts
// the one-time code, resolves the tenant from the same URL, reconstructs
// the redirect URI the identity provider originally saw, exchanges the
// code at the gateway token endpoint, records the returned expiry, and
// persists the tenant context for the rest of the chain.
//
// The subsequent self-lookup/session-creation step is the caller's to run
// in the background (see bootstrap); Exchange itself completes
// synchronously.
func (e *Exchanger) Exchange(ctx context.Context, callbackURL string) (tenant.Identity, *oauth2.Token, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return tenant.Identity{}, nil, fmt.Errorf("malformed callback URL: %w", err)
	}

	code := parsed.Query().Get("code")
	if code == "" {
		return tenant.Identity{}, nil, ErrMissingCode
	}

	identity := tenant.Resolve(callbackURL, e.cfg.Tenants)
	if identity.IsZero() {
		// The redirect should carry the tenant; the pre-redirect context is
		// the fallback for providers that strip extra query parameters.
		remembered, ok := e.store.RememberedTenant()
		if !ok {
			return tenant.Identity{}, nil, fmt.Errorf("cannot resolve tenant for token exchange")
		}
		identity = remembered
	}

	// The redirect URI must match the one sent to the identity provider
	// byte for byte, including the tenant/client query parameters, and is
	// percent-encoded as a single opaque value.
	callbackBase := *parsed
	callbackBase.RawQuery = ""
	callbackBase.Fragment = ""
	redirectURI := identity.CallbackURL(callbackBase.String())

	tokenURL := fmt.Sprintf("%s/authn/token?code=%s&redirect-uri=%s",
		e.cfg.Gateway, url.QueryEscape(code), url.QueryEscape(redirectURI))

	var resp TokenResponse
	if err := e.client.PostJSON(ctx, tokenURL, identity.Name, "", nil, &resp); err != nil {
		return tenant.Identity{}, nil, fmt.Errorf("token exchange failed: %w", err)
	}

	if err := e.recordExpiry(&resp); err != nil {
		return tenant.Identity{}, nil, err
	}

	if err := e.store.RememberTenant(identity); err != nil {
		return tenant.Identity{}, nil, fmt.Errorf("failed to persist tenant context: %w", err)
	}

	logging.Info("TokenExchange", "Exchanged authorization code for tenant=%s", identity.Name)
	return identity, resp.Credential(), nil
}

// recordExpiry feeds the backend-reported expirations into the session
// store so session creation finds them cached.
func (e *Exchanger) recordExpiry(resp *TokenResponse) error {
	at, errAt := time.Parse(time.RFC3339, resp.AccessTokenExpiration)
	rt, errRt := time.Parse(time.RFC3339, resp.RefreshTokenExpiration)
	if errAt != nil || errRt != nil {
		// Session creation fabricates an expired-at record in this case.
		logging.Warn("TokenExchange", "Token response without usable expirations")
		return nil
	}

	return e.store.SetTokenExpiry(at.UnixMilli(), rt.UnixMilli())
}
