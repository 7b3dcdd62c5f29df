package registry

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"portico/internal/config"
	"portico/internal/gateway"
	"portico/internal/storage"
	"portico/pkg/logging"
)

// OrphanHandler is invoked for discovery entries that have no matching
// entitlement. The default logs; callers may substitute their own policy.
type OrphanHandler func(DiscoveryRecord)

// Resolver reconciles the tenant's entitlement listing with module
// discovery into a single Resolution.
type Resolver struct {
	client   *gateway.Client
	adapter  *storage.Adapter
	cfg      config.PlatformConfig
	onOrphan OrphanHandler
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithOrphanHandler replaces the default orphan policy.
func WithOrphanHandler(h OrphanHandler) ResolverOption {
	return func(r *Resolver) {
		r.onOrphan = h
	}
}

// NewResolver creates a resolver over the given gateway client and
// storage adapter.
func NewResolver(client *gateway.Client, adapter *storage.Adapter, cfg config.PlatformConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:  client,
		adapter: adapter,
		cfg:     cfg,
		onOrphan: func(rec DiscoveryRecord) {
			logging.Warn("Registry", "Discovered module %s has no entitlement, skipping", rec.ID)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches the tenant's entitlements and module discovery,
// reconciles them by module id, extracts the host application, and caches
// the outcome in the durable tier. The Resolution is also returned
// directly; callers must use the return value, not the cache, to continue
// the chain.
//
// Reconciliation policy: entitled-but-undeployed modules are silently
// dropped, deployed-but-unentitled modules go to the orphan handler once
// each, and the host module never appears among the remotes no matter
// which side it showed up on.
func (r *Resolver) Resolve(ctx context.Context, tenantName, token string) (*Resolution, error) {
	var (
		entitled  []EntitlementRecord
		discovery []DiscoveryRecord
		err       error
	)

	switch r.cfg.DiscoveryStrategy {
	case config.DiscoveryByApplication:
		// Discovery fan-out needs the application ids, so entitlements come first.
		entitled, err = r.fetchEntitlements(ctx, tenantName, token)
		if err != nil {
			return nil, err
		}
		discovery, err = r.fetchDiscoveryByApplication(ctx, tenantName, token, entitled)
		if err != nil {
			return nil, err
		}
	default:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var ferr error
			entitled, ferr = r.fetchEntitlements(gctx, tenantName, token)
			return ferr
		})
		g.Go(func() error {
			var ferr error
			discovery, ferr = r.fetchDiscoveryByTenant(gctx, tenantName, token)
			return ferr
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	resolution, err := r.reconcile(entitled, discovery)
	if err != nil {
		return nil, err
	}
	resolution.SourceURL = r.sourceURL()

	if err := r.cache(resolution); err != nil {
		return nil, err
	}

	logging.Info("Registry", "Resolved %d remote modules for tenant=%s", len(resolution.Remotes), tenantName)
	return resolution, nil
}

// fetchEntitlements loads the entitlement listing and flattens it:
// applications are walked in response order, each module merged with its
// application's descriptor by id.
func (r *Resolver) fetchEntitlements(ctx context.Context, tenantName, token string) ([]EntitlementRecord, error) {
	listURL := fmt.Sprintf("%s/entitlements/%s/applications", r.cfg.Gateway, url.PathEscape(tenantName))

	var resp EntitlementResponse
	if err := r.client.GetJSON(ctx, listURL, tenantName, token, &resp); err != nil {
		return nil, fmt.Errorf("entitlement listing failed: %w", err)
	}

	var records []EntitlementRecord
	for _, app := range resp.ApplicationDescriptors {
		descriptors := make(map[string]ModuleDescriptor, len(app.UIModuleDescriptors))
		for _, d := range app.UIModuleDescriptors {
			descriptors[d.ID] = d
		}

		for _, mod := range app.UIModules {
			record := EntitlementRecord{
				ID:            mod.ID,
				Name:          mod.Name,
				Version:       mod.Version,
				ApplicationID: app.ID,
			}
			if d, ok := descriptors[mod.ID]; ok {
				record.RequiredInterfaces = d.Requires
				record.OptionalInterfaces = d.Optional
				record.Metadata = d.Metadata
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func (r *Resolver) fetchDiscoveryByTenant(ctx context.Context, tenantName, token string) ([]DiscoveryRecord, error) {
	var resp DiscoveryResponse
	if err := r.client.GetJSON(ctx, r.tenantDiscoveryURL(), tenantName, token, &resp); err != nil {
		return nil, fmt.Errorf("module discovery failed: %w", err)
	}
	return resp.Discovery, nil
}

// fetchDiscoveryByApplication queries discovery once per distinct
// application id, in parallel, and merges the results in application order.
func (r *Resolver) fetchDiscoveryByApplication(ctx context.Context, tenantName, token string, entitled []EntitlementRecord) ([]DiscoveryRecord, error) {
	var appIDs []string
	seen := make(map[string]bool)
	for _, rec := range entitled {
		if rec.ApplicationID == "" || seen[rec.ApplicationID] {
			continue
		}
		seen[rec.ApplicationID] = true
		appIDs = append(appIDs, rec.ApplicationID)
	}

	results := make([][]DiscoveryRecord, len(appIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, appID := range appIDs {
		i, appID := i, appID
		g.Go(func() error {
			queryURL := fmt.Sprintf("%s/applications/%s/discovery?limit=%d",
				r.cfg.Gateway, url.PathEscape(appID), r.cfg.DiscoveryLimit)

			var resp DiscoveryResponse
			if err := r.client.GetJSON(gctx, queryURL, tenantName, token, &resp); err != nil {
				return fmt.Errorf("discovery for application %s failed: %w", appID, err)
			}
			mu.Lock()
			results[i] = resp.Discovery
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []DiscoveryRecord
	for _, part := range results {
		merged = append(merged, part...)
	}
	return merged, nil
}

// reconcile intersects the two listings by module id and pulls the host
// application out by its reserved name.
func (r *Resolver) reconcile(entitled []EntitlementRecord, discovery []DiscoveryRecord) (*Resolution, error) {
	discovered := make(map[string]DiscoveryRecord, len(discovery))
	for _, rec := range discovery {
		discovered[rec.ID] = rec
	}

	hostLocation := ""
	isHost := func(name string) bool { return name == r.cfg.HostModule }

	remotes := []ResolvedModule{}
	matched := make(map[string]bool)
	for _, rec := range entitled {
		disc, ok := discovered[rec.ID]
		if !ok {
			// Entitled but not deployed: dropped without ceremony.
			continue
		}
		matched[rec.ID] = true
		if isHost(rec.Name) || isHost(disc.Name) {
			hostLocation = disc.Location
			continue
		}
		remotes = append(remotes, ResolvedModule{EntitlementRecord: rec, Location: disc.Location})
	}

	reported := make(map[string]bool)
	for _, rec := range discovery {
		if matched[rec.ID] || reported[rec.ID] {
			continue
		}
		reported[rec.ID] = true
		if isHost(rec.Name) {
			hostLocation = rec.Location
			continue
		}
		r.onOrphan(rec)
	}

	if hostLocation == "" {
		return nil, fmt.Errorf("host module %q not present in discovery", r.cfg.HostModule)
	}

	return &Resolution{HostLocation: hostLocation, Remotes: remotes}, nil
}

func (r *Resolver) sourceURL() string {
	if r.cfg.DiscoveryStrategy == config.DiscoveryByApplication {
		return r.cfg.Gateway + "/applications"
	}
	return r.tenantDiscoveryURL()
}

func (r *Resolver) tenantDiscoveryURL() string {
	return fmt.Sprintf("%s/modules/discovery?limit=%d", r.cfg.DiscoveryBase(), r.cfg.DiscoveryLimit)
}

// cache writes the resolution into the durable tier so later reads (the
// modules command, a restarted host) can skip the fetches.
func (r *Resolver) cache(res *Resolution) error {
	if err := r.adapter.Set(storage.KeyRegistrySource, res.SourceURL); err != nil {
		return fmt.Errorf("failed to cache registry source: %w", err)
	}
	if err := r.adapter.Set(storage.KeyHostLocation, res.HostLocation); err != nil {
		return fmt.Errorf("failed to cache host location: %w", err)
	}
	if err := r.adapter.Set(storage.KeyRemoteModules, res.Remotes); err != nil {
		return fmt.Errorf("failed to cache remote modules: %w", err)
	}
	return nil
}

// Cached loads the most recent resolution from the durable tier. The
// second return is false when any of the three keys is missing.
func (r *Resolver) Cached() (*Resolution, bool) {
	var res Resolution
	okSource, _ := r.adapter.Get(storage.KeyRegistrySource, &res.SourceURL)
	okHost, _ := r.adapter.Get(storage.KeyHostLocation, &res.HostLocation)
	okRemotes, _ := r.adapter.Get(storage.KeyRemoteModules, &res.Remotes)
	if !okSource || !okHost || !okRemotes {
		return nil, false
	}
	return &res, true
}
