package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portico/internal/config"
	"portico/internal/gateway"
	"portico/internal/storage"
	"portico/internal/tenant"
)

const selfBody = `{
	"user": {"id": "u1", "username": "admin"},
	"permissions": {"permissions": ["users.view"]}
}`

func newTestStore(t *testing.T, handler http.Handler) (*Store, *storage.Adapter, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := storage.NewAdapter(t.TempDir())
	require.NoError(t, err)

	client, err := gateway.NewClient()
	require.NoError(t, err)

	cfg := config.GetDefaultConfig()
	cfg.Gateway = srv.URL
	cfg.Authn = srv.URL + "/idp"

	return NewStore(adapter, client, cfg), adapter, srv
}

func TestCreate_FabricatedExpiry(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	before := time.Now().UnixMilli()
	payload := &SelfPayload{User: User{ID: "u1", Username: "admin"}}
	sess, err := store.Create(context.Background(), tenant.Identity{Name: "diku", ClientID: "diku-app"}, "", payload)
	require.NoError(t, err)

	assert.Equal(t, ExpiredAt, sess.TokenExpiration.AtExpires, "access token must start out expired")
	assert.Greater(t, sess.TokenExpiration.RtExpires, before, "refresh window must extend past now")
	assert.NotEmpty(t, sess.TokenExpiration.AtExpiresISO)
	assert.NotEmpty(t, sess.TokenExpiration.RtExpiresISO)
}

func TestCreate_PayloadExpiryWins(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	payload := &SelfPayload{
		User: User{ID: "u1"},
		TokenExpiration: &PayloadExpiration{
			AccessTokenExpiration:  "2023-11-14T22:13:20Z",
			RefreshTokenExpiration: "2023-11-14T22:23:20Z",
		},
	}
	sess, err := store.Create(context.Background(), tenant.Identity{Name: "diku"}, "tok", payload)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000000), sess.TokenExpiration.AtExpires)
	assert.Equal(t, int64(1700000600000), sess.TokenExpiration.RtExpires)
}

func TestCreate_CachedExpiryWinsOverPayload(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	// The exchange flow records expiry before the self-lookup runs.
	require.NoError(t, store.SetTokenExpiry(int64(1800000000000), int64(1800000600000)))

	payload := &SelfPayload{
		User: User{ID: "u1"},
		TokenExpiration: &PayloadExpiration{
			AccessTokenExpiration:  "2023-11-14T22:13:20Z",
			RefreshTokenExpiration: "2023-11-14T22:23:20Z",
		},
	}
	sess, err := store.Create(context.Background(), tenant.Identity{Name: "diku"}, "tok", payload)
	require.NoError(t, err)

	assert.Equal(t, int64(1800000000000), sess.TokenExpiration.AtExpires)
}

func TestCreate_ConsortialTenantOverride(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	payload := &SelfPayload{User: User{ID: "u1"}, OriginalTenantID: "central"}
	sess, err := store.Create(context.Background(), tenant.Identity{Name: "member"}, "", payload)
	require.NoError(t, err)

	assert.Equal(t, "central", sess.Tenant)
}

func TestCreate_WritesSentinel(t *testing.T) {
	store, adapter, _ := newTestStore(t, http.NotFoundHandler())

	payload := &SelfPayload{User: User{ID: "u1"}}
	_, err := store.Create(context.Background(), tenant.Identity{Name: "diku"}, "", payload)
	require.NoError(t, err)

	_, ok := adapter.GetSignal(storage.KeySessionSentinel)
	assert.True(t, ok, "session sentinel must exist after login")
}

func TestSetTokenExpiry_TypeErrors(t *testing.T) {
	store, adapter, _ := newTestStore(t, http.NotFoundHandler())

	tests := []struct {
		name   string
		at, rt interface{}
	}{
		{"string atExpires", "x", 5},
		{"string rtExpires", 5, "x"},
		{"fractional float", 1.5, 5},
		{"nil value", nil, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.SetTokenExpiry(tt.at, tt.rt)
			require.Error(t, err)

			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)

			var sess Session
			ok, err := adapter.Get(storage.KeySession, &sess)
			require.NoError(t, err)
			assert.False(t, ok, "no storage write may happen on invalid input")
		})
	}
}

func TestSetTokenExpiry_AcceptsIntegerForms(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	require.NoError(t, store.SetTokenExpiry(int64(1700000000000), float64(1700000600000)))

	sess, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), sess.TokenExpiration.AtExpires)
	assert.Equal(t, int64(1700000600000), sess.TokenExpiration.RtExpires)
	assert.Equal(t, "2023-11-14T22:13:20Z", sess.TokenExpiration.AtExpiresISO)
}

func TestValidate_Success(t *testing.T) {
	var selfCalls int
	store, adapter, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "_self") {
			selfCalls++
			assert.Equal(t, "diku", r.Header.Get(gateway.TenantHeader))
			w.Write([]byte(selfBody))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	seed := &Session{IsAuthenticated: true, User: User{ID: "u0", Username: "stale"}, Tenant: "diku"}
	require.NoError(t, adapter.Set(storage.KeySession, seed))

	sess, err := store.Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, selfCalls)
	assert.Equal(t, "admin", sess.User.Username, "session is refreshed in place from the self-lookup")
	assert.True(t, sess.Perms.Has("users.view"))
}

func TestValidate_AbsentSession(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	_, err := store.Validate(context.Background())
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestValidate_MalformedRecord(t *testing.T) {
	var selfCalls int
	store, adapter, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		selfCalls++
	}))

	// Present but not authenticated: no self-lookup may be attempted.
	require.NoError(t, adapter.Set(storage.KeySession, &Session{IsAuthenticated: false, User: User{ID: "u1"}, Tenant: "diku"}))

	_, err := store.Validate(context.Background())
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, 0, selfCalls)
}

func TestValidate_RejectionTearsDown(t *testing.T) {
	store, adapter, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "_self") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// logout endpoint
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, adapter.Set(storage.KeySession, &Session{IsAuthenticated: true, User: User{ID: "u1"}, Tenant: "diku"}))
	require.NoError(t, adapter.SetSignal(storage.KeySessionSentinel, "true"))

	_, err := store.Validate(context.Background())
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, ok := store.Current()
	assert.False(t, ok, "rejected session must be torn down")
	_, ok = adapter.GetSignal(storage.KeySessionSentinel)
	assert.False(t, ok)
}

func TestLogout_ClearsAllKeysEvenWhenBackendRejects(t *testing.T) {
	store, adapter, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	require.NoError(t, adapter.Set(storage.KeySession, &Session{IsAuthenticated: true, User: User{ID: "u1"}, Tenant: "diku"}))
	require.NoError(t, adapter.Set(storage.KeyLoginResponse, map[string]string{"cached": "payload"}))
	require.NoError(t, adapter.SetSignal(storage.KeySessionSentinel, "true"))
	require.NoError(t, adapter.SetSignal(storage.KeyTenantContext, `{"name":"diku"}`))

	require.NoError(t, store.Logout(context.Background()))

	var any map[string]interface{}
	ok, _ := adapter.Get(storage.KeySession, &any)
	assert.False(t, ok)
	ok, _ = adapter.Get(storage.KeyLoginResponse, &any)
	assert.False(t, ok)
	_, sok := adapter.GetSignal(storage.KeySessionSentinel)
	assert.False(t, sok)
	_, sok = adapter.GetSignal(storage.KeyTenantContext)
	assert.False(t, sok)
}

func TestLogout_BackendCalledAtMostOnce(t *testing.T) {
	var logoutCalls int
	store, adapter, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/authn/logout") {
			logoutCalls++
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, adapter.Set(storage.KeySession, &Session{IsAuthenticated: true, User: User{ID: "u1"}, Tenant: "diku"}))

	require.NoError(t, store.Logout(context.Background()))
	// Second logout finds no durable session and skips the backend call.
	require.NoError(t, store.Logout(context.Background()))

	assert.Equal(t, 1, logoutCalls)
}

func TestAuthorizeURL(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())
	identity := tenant.Identity{Name: "diku", ClientID: "diku-app"}

	raw := store.AuthorizeURL(identity, "https://app.example.org/oidc-landing")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(parsed.Path, "/realms/diku/protocol/openid-connect/auth"))

	query := parsed.Query()
	assert.Equal(t, "diku-app", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "openid", query.Get("scope"))
	assert.Equal(t, "https://app.example.org/oidc-landing?tenant=diku&client_id=diku-app", query.Get("redirect_uri"))
}

func TestRememberedTenantRoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t, http.NotFoundHandler())

	_, ok := store.RememberedTenant()
	assert.False(t, ok)

	identity := tenant.Identity{Name: "diku", ClientID: "diku-app"}
	require.NoError(t, store.RememberTenant(identity))

	got, ok := store.RememberedTenant()
	require.True(t, ok)
	assert.Equal(t, identity, got)
}
