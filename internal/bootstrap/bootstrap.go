// Package bootstrap is the top-level control flow: from an unknown
// session state to either a redirect toward the identity provider, a
// token exchange with a background completion chain, or a fully resolved,
// asset-loaded ready state.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"portico/internal/assets"
	"portico/internal/config"
	"portico/internal/idp"
	"portico/internal/registry"
	"portico/internal/session"
	"portico/internal/tenant"
	"portico/pkg/logging"
)

// ErrNoTenant means no tenant could be resolved from the URL or the
// static configuration. Guessing is forbidden; the flow halts.
var ErrNoTenant = errors.New("no tenant could be resolved, refusing to guess")

// ActionKind is what the caller must do next.
type ActionKind string

const (
	// ActionRedirect means navigate to RedirectURL (the identity
	// provider's authorization endpoint) and wait for the callback.
	ActionRedirect ActionKind = "redirect"

	// ActionExchange means a token exchange succeeded and the background
	// chain on Task is completing the session.
	ActionExchange ActionKind = "exchange"

	// ActionReady means an authenticated session exists, modules are
	// resolved, and host assets are loaded.
	ActionReady ActionKind = "ready"
)

// Outcome is the result of one bootstrap run.
type Outcome struct {
	Action      ActionKind
	Identity    tenant.Identity
	RedirectURL string

	// Set for ActionReady.
	Session    *session.Session
	Resolution *registry.Resolution
	HostAssets *assets.AssetSet

	// Set for ActionExchange.
	Task *Task
}

// Initializer wires the session store, exchanger, resolver, and asset
// loader into the bootstrap state machine.
type Initializer struct {
	store     *session.Store
	exchanger *idp.Exchanger
	resolver  *registry.Resolver
	loader    *assets.Loader
	cfg       config.PlatformConfig
}

// NewInitializer creates the bootstrap entry point.
func NewInitializer(store *session.Store, exchanger *idp.Exchanger, resolver *registry.Resolver, loader *assets.Loader, cfg config.PlatformConfig) *Initializer {
	return &Initializer{
		store:     store,
		exchanger: exchanger,
		resolver:  resolver,
		loader:    loader,
		cfg:       cfg,
	}
}

// Run inspects the current URL and drives the session state machine.
//
// A callback-path URL triggers the token exchange; everything else starts
// with validation of the stored session. An absent, partial, or rejected
// session never surfaces as an error here: it converts into a redirect
// toward the identity provider. Module resolution and asset loading
// failures do propagate; once a session is confirmed valid there is no
// fallback surface to hand them to.
func (i *Initializer) Run(ctx context.Context, currentURL string) (*Outcome, error) {
	parsed, err := url.Parse(currentURL)
	if err != nil {
		return nil, fmt.Errorf("malformed current URL: %w", err)
	}

	if parsed.Path == i.cfg.CallbackPath {
		return i.runExchange(ctx, currentURL)
	}

	sess, err := i.store.Validate(ctx)
	if errors.Is(err, session.ErrSessionInvalid) {
		logging.Debug("Bootstrap", "No valid session, redirecting to identity provider")
		return i.redirectOutcome(currentURL)
	}
	if err != nil {
		return nil, err
	}

	return i.ready(ctx, sess)
}

// runExchange handles a landing on the callback path. The exchange itself
// is synchronous; the session-creation chain runs on a background task so
// the caller can show progress while it completes.
func (i *Initializer) runExchange(ctx context.Context, callbackURL string) (*Outcome, error) {
	identity, token, err := i.exchanger.Exchange(ctx, callbackURL)
	if err != nil {
		return nil, err
	}

	accessToken := ""
	if token != nil {
		accessToken = token.AccessToken
	}

	task := StartTask(ctx, func(taskCtx context.Context) (*Result, error) {
		payload, err := i.store.Lookup(taskCtx, identity.Name, accessToken)
		if err != nil {
			return nil, fmt.Errorf("self-lookup after exchange failed: %w", err)
		}

		sess, err := i.store.Create(taskCtx, identity, accessToken, payload)
		if err != nil {
			return nil, err
		}

		resolution, err := i.resolver.Resolve(taskCtx, sess.Tenant, sess.Token)
		if err != nil {
			return nil, err
		}

		hostAssets, err := i.loader.Load(taskCtx, resolution.HostLocation)
		if err != nil {
			return nil, err
		}

		return &Result{Session: sess, Resolution: resolution, HostAssets: hostAssets}, nil
	})

	return &Outcome{Action: ActionExchange, Identity: identity, Task: task}, nil
}

// ready completes the validated-session path: resolve modules, load the
// host's assets.
func (i *Initializer) ready(ctx context.Context, sess *session.Session) (*Outcome, error) {
	resolution, err := i.resolver.Resolve(ctx, sess.Tenant, sess.Token)
	if err != nil {
		return nil, err
	}

	hostAssets, err := i.loader.Load(ctx, resolution.HostLocation)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Action:     ActionReady,
		Identity:   tenant.Identity{Name: sess.Tenant, ClientID: i.cfg.ClientIDFor(sess.Tenant)},
		Session:    sess,
		Resolution: resolution,
		HostAssets: hostAssets,
	}, nil
}

// redirectOutcome resolves the tenant and builds the authorization URL.
// No self-lookup is attempted on this path; an unresolvable tenant halts
// the flow.
func (i *Initializer) redirectOutcome(currentURL string) (*Outcome, error) {
	identity := tenant.Resolve(currentURL, i.cfg.Tenants)
	if identity.IsZero() {
		return nil, ErrNoTenant
	}

	// The identity must survive the redirect round trip.
	if err := i.store.RememberTenant(identity); err != nil {
		return nil, fmt.Errorf("failed to persist tenant context: %w", err)
	}

	authorizeURL := i.store.AuthorizeURL(identity, i.callbackBase(currentURL))
	return &Outcome{Action: ActionRedirect, Identity: identity, RedirectURL: authorizeURL}, nil
}

// callbackBase derives the callback base URL from the current location's
// origin plus the configured callback path.
func (i *Initializer) callbackBase(currentURL string) string {
	parsed, err := url.Parse(currentURL)
	if err != nil || parsed.Host == "" {
		return i.cfg.CallbackPath
	}
	return fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, i.cfg.CallbackPath)
}
