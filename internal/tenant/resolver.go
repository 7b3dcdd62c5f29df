package tenant

import (
	"net/url"

	"portico/pkg/logging"
)

// Identity names the active tenant and its OIDC client id.
type Identity struct {
	Name     string `json:"name"`
	ClientID string `json:"clientId"`
}

// IsZero reports whether no tenant could be resolved. Callers must halt on
// a zero identity, never guess.
func (i Identity) IsZero() bool {
	return i.Name == ""
}

// CallbackURL appends the tenant and client id as query parameters to the
// callback base URL. The authorization request and the later token
// exchange must both use this exact form; the identity provider compares
// the redirect URI byte for byte.
func (i Identity) CallbackURL(base string) string {
	return base + "?tenant=" + url.QueryEscape(i.Name) + "&client_id=" + url.QueryEscape(i.ClientID)
}

// Resolve derives the active tenant identity. Precedence, highest first:
//
//  1. tenant/client_id query parameters on the current URL: the identity
//     provider redirect carries them and they must win over any stale
//     static default after the round trip;
//  2. the single entry of the configured tenant map, when exactly one
//     entry exists;
//  3. the zero Identity.
//
// Resolve is idempotent: the same URL and tenant map always yield the same
// identity.
func Resolve(rawURL string, tenants map[string]string) Identity {
	if u, err := url.Parse(rawURL); err == nil {
		query := u.Query()
		if name := query.Get("tenant"); name != "" {
			identity := Identity{Name: name, ClientID: query.Get("client_id")}
			logging.Debug("Tenant", "Resolved tenant %s from URL parameters", identity.Name)
			return identity
		}
	}

	if len(tenants) == 1 {
		for name, clientID := range tenants {
			logging.Debug("Tenant", "Resolved tenant %s from static configuration", name)
			return Identity{Name: name, ClientID: clientID}
		}
	}

	return Identity{}
}
