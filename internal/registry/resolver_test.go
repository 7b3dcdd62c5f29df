package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portico/internal/config"
	"portico/internal/gateway"
	"portico/internal/storage"
)

func entitlementBody(t *testing.T, apps ...Application) string {
	t.Helper()
	raw, err := json.Marshal(EntitlementResponse{ApplicationDescriptors: apps, TotalRecords: len(apps)})
	require.NoError(t, err)
	return string(raw)
}

func discoveryBody(t *testing.T, records ...DiscoveryRecord) string {
	t.Helper()
	raw, err := json.Marshal(DiscoveryResponse{Discovery: records, TotalRecords: len(records)})
	require.NoError(t, err)
	return string(raw)
}

func newTestResolver(t *testing.T, handler http.Handler, opts ...ResolverOption) (*Resolver, *storage.Adapter, *httptest.Server, *config.PlatformConfig) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := storage.NewAdapter(t.TempDir())
	require.NoError(t, err)

	client, err := gateway.NewClient()
	require.NoError(t, err)

	cfg := config.GetDefaultConfig()
	cfg.Gateway = srv.URL

	resolver := NewResolver(client, adapter, cfg, opts...)
	return resolver, adapter, srv, &resolver.cfg
}

// The canonical reconciliation case: entitlements {A,B,C}, discovery
// {B,C,D}. The manifest is exactly {B,C}; D goes to the orphan handler
// once; A vanishes silently.
func TestResolve_Reconciliation(t *testing.T) {
	app := Application{
		ID: "app-platform-1.0.0",
		UIModules: []ModuleRef{
			{ID: "mod-a-1.0.0", Name: "mod-a"},
			{ID: "mod-b-1.0.0", Name: "mod-b"},
			{ID: "mod-c-1.0.0", Name: "mod-c"},
			{ID: "host-1.0.0", Name: "app-shell"},
		},
		UIModuleDescriptors: []ModuleDescriptor{
			{ID: "mod-b-1.0.0", Requires: []InterfaceRef{{ID: "users", Version: "16.0"}}},
		},
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/entitlements/"):
			w.Write([]byte(entitlementBody(t, app)))
		case strings.Contains(r.URL.Path, "/modules/discovery"):
			w.Write([]byte(discoveryBody(t,
				DiscoveryRecord{ID: "mod-b-1.0.0", Name: "mod-b", Location: "https://cdn.example.org/mod-b"},
				DiscoveryRecord{ID: "mod-c-1.0.0", Name: "mod-c", Location: "https://cdn.example.org/mod-c"},
				DiscoveryRecord{ID: "mod-d-1.0.0", Name: "mod-d", Location: "https://cdn.example.org/mod-d"},
				DiscoveryRecord{ID: "host-1.0.0", Name: "app-shell", Location: "https://cdn.example.org/host"},
			)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	var orphans []DiscoveryRecord
	resolver, _, _, _ := newTestResolver(t, handler, WithOrphanHandler(func(rec DiscoveryRecord) {
		orphans = append(orphans, rec)
	}))

	res, err := resolver.Resolve(context.Background(), "diku", "tok")
	require.NoError(t, err)

	var ids []string
	for _, m := range res.Remotes {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"mod-b-1.0.0", "mod-c-1.0.0"}, ids)

	require.Len(t, orphans, 1)
	assert.Equal(t, "mod-d-1.0.0", orphans[0].ID)

	assert.Equal(t, "https://cdn.example.org/host", res.HostLocation)
	assert.Equal(t, "https://cdn.example.org/mod-b", res.Remotes[0].Location)
	require.Len(t, res.Remotes[0].RequiredInterfaces, 1)
	assert.Equal(t, "users", res.Remotes[0].RequiredInterfaces[0].ID)
}

func TestResolve_HostExcludedEvenWithoutEntitlement(t *testing.T) {
	app := Application{
		ID:        "app-platform-1.0.0",
		UIModules: []ModuleRef{{ID: "mod-a-1.0.0", Name: "mod-a"}},
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/entitlements/"):
			w.Write([]byte(entitlementBody(t, app)))
		default:
			w.Write([]byte(discoveryBody(t,
				DiscoveryRecord{ID: "mod-a-1.0.0", Name: "mod-a", Location: "https://cdn.example.org/mod-a"},
				DiscoveryRecord{ID: "host-2.0.0", Name: "app-shell", Location: "https://cdn.example.org/host"},
			)))
		}
	})

	var orphans []DiscoveryRecord
	resolver, _, _, _ := newTestResolver(t, handler, WithOrphanHandler(func(rec DiscoveryRecord) {
		orphans = append(orphans, rec)
	}))

	res, err := resolver.Resolve(context.Background(), "diku", "")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.org/host", res.HostLocation)
	for _, m := range res.Remotes {
		assert.NotEqual(t, "app-shell", m.Name)
	}
	assert.Empty(t, orphans, "the host is never reported as an orphan")
}

func TestResolve_MissingHostFails(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/entitlements/"):
			w.Write([]byte(entitlementBody(t)))
		default:
			w.Write([]byte(discoveryBody(t)))
		}
	})

	resolver, _, _, _ := newTestResolver(t, handler)

	_, err := resolver.Resolve(context.Background(), "diku", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app-shell")
}

func TestResolve_ApplicationStrategyFansOut(t *testing.T) {
	apps := []Application{
		{ID: "app-one-1.0.0", UIModules: []ModuleRef{{ID: "mod-a-1.0.0", Name: "mod-a"}}},
		{ID: "app-two-1.0.0", UIModules: []ModuleRef{
			{ID: "mod-b-1.0.0", Name: "mod-b"},
			{ID: "host-1.0.0", Name: "app-shell"},
		}},
	}

	var mu sync.Mutex
	queried := map[string]int{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/entitlements/"):
			w.Write([]byte(entitlementBody(t, apps...)))
		case strings.Contains(r.URL.Path, "/applications/app-one-1.0.0/discovery"):
			mu.Lock()
			queried["app-one-1.0.0"]++
			mu.Unlock()
			w.Write([]byte(discoveryBody(t,
				DiscoveryRecord{ID: "mod-a-1.0.0", Name: "mod-a", Location: "https://cdn.example.org/mod-a"},
			)))
		case strings.Contains(r.URL.Path, "/applications/app-two-1.0.0/discovery"):
			mu.Lock()
			queried["app-two-1.0.0"]++
			mu.Unlock()
			w.Write([]byte(discoveryBody(t,
				DiscoveryRecord{ID: "mod-b-1.0.0", Name: "mod-b", Location: "https://cdn.example.org/mod-b"},
				DiscoveryRecord{ID: "host-1.0.0", Name: "app-shell", Location: "https://cdn.example.org/host"},
			)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resolver, _, _, cfg := newTestResolver(t, handler)
	cfg.DiscoveryStrategy = config.DiscoveryByApplication

	res, err := resolver.Resolve(context.Background(), "diku", "")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"app-one-1.0.0": 1, "app-two-1.0.0": 1}, queried)
	assert.Equal(t, "https://cdn.example.org/host", res.HostLocation)

	var ids []string
	for _, m := range res.Remotes {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"mod-a-1.0.0", "mod-b-1.0.0"}, ids)
}

func TestResolve_CachesThreeKeys(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/entitlements/"):
			w.Write([]byte(entitlementBody(t, Application{
				ID:        "app-1.0.0",
				UIModules: []ModuleRef{{ID: "mod-a-1.0.0", Name: "mod-a"}, {ID: "host-1.0.0", Name: "app-shell"}},
			})))
		default:
			w.Write([]byte(discoveryBody(t,
				DiscoveryRecord{ID: "mod-a-1.0.0", Name: "mod-a", Location: "https://cdn.example.org/mod-a"},
				DiscoveryRecord{ID: "host-1.0.0", Name: "app-shell", Location: "https://cdn.example.org/host"},
			)))
		}
	})

	resolver, adapter, _, _ := newTestResolver(t, handler)

	res, err := resolver.Resolve(context.Background(), "diku", "")
	require.NoError(t, err)

	var source, host string
	ok, err := adapter.Get(storage.KeyRegistrySource, &source)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, source, "/modules/discovery?limit=")

	ok, err = adapter.Get(storage.KeyHostLocation, &host)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.HostLocation, host)

	cached, ok := resolver.Cached()
	require.True(t, ok)
	assert.Equal(t, res, cached)
}

func TestResolve_FetchErrorPropagates(t *testing.T) {
	resolver, _, _, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := resolver.Resolve(context.Background(), "diku", "")
	require.Error(t, err)
	assert.True(t, gateway.IsFetchStatus(err, http.StatusBadGateway))
}

func TestResolve_DefaultOrphanHandlerDoesNotPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/entitlements/"):
			w.Write([]byte(entitlementBody(t)))
		default:
			w.Write([]byte(discoveryBody(t,
				DiscoveryRecord{ID: "stray-1.0.0", Name: "stray", Location: "https://cdn.example.org/stray"},
				DiscoveryRecord{ID: "host-1.0.0", Name: "app-shell", Location: "https://cdn.example.org/host"},
			)))
		}
	})

	resolver, _, _, _ := newTestResolver(t, handler)

	res, err := resolver.Resolve(context.Background(), "diku", "")
	require.NoError(t, err)
	assert.Empty(t, res.Remotes)
}
