package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"portico/internal/config"
	"portico/internal/gateway"
	"portico/internal/storage"
	"portico/internal/tenant"
	"portico/pkg/logging"
)

// refreshWindow is the fabricated refresh-token lifetime used when neither
// a cached nor a backend-reported expiry is available.
const refreshWindow = 10 * time.Minute

// Store owns the session lifecycle: validation of a stored session,
// creation from an identity-backend payload, expiry bookkeeping, and
// teardown. It is the only writer of the durable session record.
type Store struct {
	adapter *storage.Adapter
	client  *gateway.Client
	cfg     config.PlatformConfig

	// validateGroup collapses concurrent validation attempts. Two callers
	// validating at once is tolerated (self-lookup is idempotent); there is
	// no reason to issue the request twice.
	validateGroup singleflight.Group

	// logoutMu guards the private in-flight sentinel that makes Logout
	// idempotent within this process.
	logoutMu       sync.Mutex
	logoutInFlight bool
}

// NewStore creates a session store over the given storage adapter and
// gateway client.
func NewStore(adapter *storage.Adapter, client *gateway.Client, cfg config.PlatformConfig) *Store {
	return &Store{
		adapter: adapter,
		client:  client,
		cfg:     cfg,
	}
}

// Current loads the durable session record. The second return is false
// when no record exists or the record cannot be decoded.
func (s *Store) Current() (*Session, bool) {
	var sess Session
	ok, err := s.adapter.Get(storage.KeySession, &sess)
	if err != nil || !ok {
		return nil, false
	}
	return &sess, true
}

// Validate confirms a stored, authenticated session against the identity
// backend's self-lookup. On success the session is refreshed in place and
// returned. Any failure (absent record, malformed record, network error,
// non-2xx) tears the session down and returns ErrSessionInvalid; the
// caller's only move is re-authentication, never surfacing a raw error.
func (s *Store) Validate(ctx context.Context) (*Session, error) {
	sess, ok := s.Current()
	if !ok || !sess.Valid() {
		return nil, ErrSessionInvalid
	}

	result, err, _ := s.validateGroup.Do("validate", func() (interface{}, error) {
		var payload SelfPayload
		if err := s.client.GetJSON(ctx, s.selfLookupURL(), sess.Tenant, sess.Token, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	})
	if err != nil {
		logging.Info("Session", "Self-lookup rejected stored session: %v", err)
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			logging.Warn("Session", "Teardown after failed validation: %v", logoutErr)
		}
		return nil, ErrSessionInvalid
	}

	payload := result.(*SelfPayload)
	sess.User = payload.User
	sess.Perms = payload.Permissions.Permissions
	if err := s.adapter.Set(storage.KeySession, sess); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed session: %w", err)
	}

	logging.Debug("Session", "Validated session for user=%s tenant=%s", sess.User.Username, sess.Tenant)
	return sess, nil
}

// Create normalizes an identity-backend payload into the authoritative
// session record and persists it across tiers. The token may be empty on
// the cookie-based auth path.
func (s *Store) Create(ctx context.Context, identity tenant.Identity, token string, payload *SelfPayload) (*Session, error) {
	tenantName := identity.Name
	if payload.OriginalTenantID != "" && payload.OriginalTenantID != tenantName {
		// Consortial setups: the backend reports the user's home tenant,
		// which wins over the tenant used to initiate login.
		logging.Debug("Session", "Login tenant %s resolved to %s", tenantName, payload.OriginalTenantID)
		tenantName = payload.OriginalTenantID
	}

	sess := &Session{
		Token:           token,
		IsAuthenticated: true,
		User:            payload.User,
		Perms:           payload.Permissions.Permissions,
		Tenant:          tenantName,
		TokenExpiration: s.resolveExpiry(payload),
	}
	if sess.Perms == nil {
		sess.Perms = PermissionSet{}
	}

	if !sess.Valid() {
		return nil, fmt.Errorf("identity backend payload missing user id or tenant: %w", ErrSessionInvalid)
	}

	if err := s.adapter.Set(storage.KeySession, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	if err := s.adapter.Set(storage.KeyLoginResponse, payload); err != nil {
		return nil, fmt.Errorf("failed to cache login response: %w", err)
	}
	if err := s.adapter.SetSignal(storage.KeySessionSentinel, "true"); err != nil {
		return nil, fmt.Errorf("failed to write session sentinel: %w", err)
	}

	logging.Info("Session", "Created session for user=%s tenant=%s", sess.User.Username, sess.Tenant)
	return sess, nil
}

// Lookup performs the authenticated self-lookup for the given tenant and
// token. It is the shared entry for post-exchange session creation.
func (s *Store) Lookup(ctx context.Context, tenantName, token string) (*SelfPayload, error) {
	var payload SelfPayload
	if err := s.client.GetJSON(ctx, s.selfLookupURL(), tenantName, token, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// resolveExpiry picks the token expiry for a new session. Order: a
// previously-cached expiry for this session key (the exchange flow
// pre-populates it out of band), then explicit backend timestamps, then a
// fabricated record with an already-expired access token and a ten-minute
// refresh window, guaranteeing the next authenticated call forces a
// refresh cycle rather than silently trusting an assumption.
func (s *Store) resolveExpiry(payload *SelfPayload) TokenExpiration {
	if cached, ok := s.Current(); ok && !cached.TokenExpiration.IsZero() {
		return cached.TokenExpiration
	}

	if payload.TokenExpiration != nil {
		at, errAt := time.Parse(time.RFC3339, payload.TokenExpiration.AccessTokenExpiration)
		rt, errRt := time.Parse(time.RFC3339, payload.TokenExpiration.RefreshTokenExpiration)
		if errAt == nil && errRt == nil {
			return TokenExpiration{
				AtExpires: at.UnixMilli(),
				RtExpires: rt.UnixMilli(),
			}.withISO()
		}
		logging.Warn("Session", "Unparseable backend expiry, fabricating: %v %v", errAt, errRt)
	}

	return TokenExpiration{
		AtExpires: ExpiredAt,
		RtExpires: time.Now().Add(refreshWindow).UnixMilli(),
	}.withISO()
}

// SetTokenExpiry merges new expiry instants into the session record,
// writing both the raw millisecond timestamps and derived ISO-8601
// strings. Either value failing the integer check yields a
// *ValidationError and no storage write.
func (s *Store) SetTokenExpiry(atExpires, rtExpires interface{}) error {
	at, ok := toIntMillis(atExpires)
	if !ok {
		return &ValidationError{Field: "atExpires", Value: atExpires}
	}
	rt, ok := toIntMillis(rtExpires)
	if !ok {
		return &ValidationError{Field: "rtExpires", Value: rtExpires}
	}

	sess, ok := s.Current()
	if !ok {
		// No session yet: the exchange flow records expiry before the
		// self-lookup creates the full record. Persist a partial record so
		// Create finds the cached expiry.
		sess = &Session{}
	}
	sess.TokenExpiration = TokenExpiration{AtExpires: at, RtExpires: rt}.withISO()

	if err := s.adapter.Set(storage.KeySession, sess); err != nil {
		return fmt.Errorf("failed to persist token expiry: %w", err)
	}
	logging.Debug("Session", "Token expiry set: at=%s rt=%s", sess.TokenExpiration.AtExpiresISO, sess.TokenExpiration.RtExpiresISO)
	return nil
}

// Logout tears the session down. It is idempotent within this process (a
// concurrent call while one is in flight is a no-op) and cooperates across
// processes through the sentinel-removal broadcast. The backend logout
// call fires at most once per login: it is guarded by checking that the
// durable tier still holds a session. Local cleanup always runs, even when
// the backend call fails; logout must never leave the client appearing
// authenticated.
func (s *Store) Logout(ctx context.Context) error {
	s.logoutMu.Lock()
	if s.logoutInFlight {
		s.logoutMu.Unlock()
		return nil
	}
	s.logoutInFlight = true
	s.logoutMu.Unlock()

	defer func() {
		s.logoutMu.Lock()
		s.logoutInFlight = false
		s.logoutMu.Unlock()
	}()

	if sess, ok := s.Current(); ok {
		logoutURL := s.cfg.Gateway + "/authn/logout"
		if err := s.client.PostJSON(ctx, logoutURL, sess.Tenant, sess.Token, nil, nil); err != nil {
			// Best effort: the backend call failing must not block teardown.
			logging.Warn("Session", "Backend logout failed: %v", err)
		}
	}

	var firstErr error
	for _, remove := range []func() error{
		func() error { return s.adapter.Remove(storage.KeySession) },
		func() error { return s.adapter.Remove(storage.KeyLoginResponse) },
		func() error { return s.adapter.RemoveSignal(storage.KeySessionSentinel) },
		func() error { return s.adapter.RemoveSignal(storage.KeyTenantContext) },
	} {
		if err := remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	logging.Info("Session", "Session cleared")
	return firstErr
}

// ClearLocal removes session state without the backend call. Used when
// another process already performed the logout and broadcast it; the
// remaining removals are no-ops on a shared state directory but cover
// stale copies.
func (s *Store) ClearLocal() {
	_ = s.adapter.Remove(storage.KeySession)
	_ = s.adapter.Remove(storage.KeyLoginResponse)
	_ = s.adapter.RemoveSignal(storage.KeyTenantContext)
}

// AuthorizeURL builds the identity provider's authorization endpoint URL
// for the given tenant, with the callback URL carrying the tenant and
// client id so they survive the redirect round trip.
func (s *Store) AuthorizeURL(identity tenant.Identity, callbackBase string) string {
	redirect := identity.CallbackURL(callbackBase)

	params := url.Values{}
	params.Set("client_id", identity.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", redirect)
	params.Set("scope", "openid")

	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/auth?%s",
		s.cfg.Authn, url.PathEscape(identity.Name), params.Encode())
}

// RememberTenant persists the tenant identity used to initiate login so it
// survives the redirect round trip.
func (s *Store) RememberTenant(identity tenant.Identity) error {
	encoded, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.adapter.SetSignal(storage.KeyTenantContext, string(encoded))
}

// RememberedTenant recalls the tenant identity stored before the redirect.
func (s *Store) RememberedTenant() (tenant.Identity, bool) {
	raw, ok := s.adapter.GetSignal(storage.KeyTenantContext)
	if !ok {
		return tenant.Identity{}, false
	}
	var identity tenant.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return tenant.Identity{}, false
	}
	return identity, true
}

func (s *Store) selfLookupURL() string {
	return fmt.Sprintf("%s/%s/_self?expandPermissions=true&fullPermissions=true&overrideUser=true",
		s.cfg.Gateway, s.cfg.UsersPath)
}

// toIntMillis accepts the numeric representations a JSON boundary can
// produce and rejects everything that is not an integer.
func toIntMillis(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
