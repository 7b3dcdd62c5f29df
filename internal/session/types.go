package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the identity portion of a session.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// PermissionSet is the canonical internal permission representation: a
// mapping from permission name to true, for O(1) membership tests.
//
// The identity backend returns permissions in one of two wire shapes: a
// flat list of strings or a list of {"permissionName": ...} objects. The
// variant is detected once, here at the boundary; every downstream
// consumer sees only the canonical form.
type PermissionSet map[string]bool

// UnmarshalJSON accepts both wire shapes.
func (p *PermissionSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("permissions are not a list: %w", err)
	}

	set := make(PermissionSet, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			set[name] = true
			continue
		}

		var obj struct {
			PermissionName string `json:"permissionName"`
		}
		if err := json.Unmarshal(item, &obj); err != nil || obj.PermissionName == "" {
			return fmt.Errorf("unrecognized permission entry %s", string(item))
		}
		set[obj.PermissionName] = true
	}

	*p = set
	return nil
}

// Has reports whether the named permission is held.
func (p PermissionSet) Has(name string) bool {
	return p[name]
}

// ExpiredAt is the sentinel access-token expiry meaning "already expired".
// It forces the next authenticated call into a refresh cycle instead of
// silently trusting an assumption.
const ExpiredAt int64 = -1

// TokenExpiration carries the access- and refresh-token expiry instants as
// millisecond timestamps plus human-readable ISO-8601 forms of each.
type TokenExpiration struct {
	AtExpires    int64  `json:"atExpires"`
	RtExpires    int64  `json:"rtExpires"`
	AtExpiresISO string `json:"atExpiresISO,omitempty"`
	RtExpiresISO string `json:"rtExpiresISO,omitempty"`
}

// IsZero reports whether no expiry has been recorded yet.
func (t TokenExpiration) IsZero() bool {
	return t.AtExpires == 0 && t.RtExpires == 0
}

// withISO fills the derived ISO-8601 strings from the raw timestamps.
func (t TokenExpiration) withISO() TokenExpiration {
	t.AtExpiresISO = time.UnixMilli(t.AtExpires).UTC().Format(time.RFC3339)
	t.RtExpiresISO = time.UnixMilli(t.RtExpires).UTC().Format(time.RFC3339)
	return t
}

// Session is the authoritative record of the current user's authenticated
// state. Exactly one logical session exists per state directory.
type Session struct {
	// Token is the opaque bearer credential. Cookie-based auth may omit it.
	Token string `json:"token,omitempty"`

	IsAuthenticated bool          `json:"isAuthenticated"`
	User            User          `json:"user"`
	Perms           PermissionSet `json:"perms"`

	// Tenant is the resolved tenant, which may differ from the tenant used
	// to initiate login in consortial setups.
	Tenant string `json:"tenant"`

	TokenExpiration TokenExpiration `json:"tokenExpiration"`
}

// Valid checks the session invariant: an authenticated session must carry
// a user id and a tenant.
func (s *Session) Valid() bool {
	return s != nil && s.IsAuthenticated && s.User.ID != "" && s.Tenant != ""
}

// SelfPayload is the identity backend's self-lookup response shape. It is
// also the login response shape; both feed session creation.
type SelfPayload struct {
	User        User `json:"user"`
	Permissions struct {
		Permissions PermissionSet `json:"permissions"`
	} `json:"permissions"`

	// OriginalTenantID is set in consortial setups where the user's home
	// tenant differs from the tenant used to initiate login.
	OriginalTenantID string `json:"originalTenantId,omitempty"`

	// TokenExpiration is present when the backend reports explicit expiry
	// instants alongside the user record.
	TokenExpiration *PayloadExpiration `json:"tokenExpiration,omitempty"`
}

// PayloadExpiration carries backend-reported expiry instants as RFC 3339
// strings.
type PayloadExpiration struct {
	AccessTokenExpiration  string `json:"accessTokenExpiration"`
	RefreshTokenExpiration string `json:"refreshTokenExpiration"`
}
