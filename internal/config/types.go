package config

// DiscoveryStrategy selects how module discovery is queried.
type DiscoveryStrategy string

const (
	// DiscoveryByTenant issues one tenant-wide discovery query.
	DiscoveryByTenant DiscoveryStrategy = "tenant"
	// DiscoveryByApplication issues one discovery query per entitled application.
	DiscoveryByApplication DiscoveryStrategy = "application"
)

// PlatformConfig is the top-level configuration structure for portico.
type PlatformConfig struct {
	// Gateway is the base URL of the platform API gateway.
	Gateway string `yaml:"gateway"`

	// Authn is the base URL of the identity provider (keycloak-style realms).
	Authn string `yaml:"authn"`

	// Discovery is an optional dedicated discovery endpoint. When empty the
	// gateway URL is used for discovery queries.
	Discovery string `yaml:"discovery,omitempty"`

	// UsersPath is the gateway path segment for the self-lookup call
	// ({gateway}/{usersPath}/_self).
	UsersPath string `yaml:"usersPath,omitempty"`

	// Tenants maps tenant names to their OIDC client ids. When exactly one
	// entry exists it is the static fallback for tenant resolution.
	Tenants map[string]string `yaml:"tenants,omitempty"`

	// DiscoveryStrategy selects the discovery query shape (tenant | application).
	DiscoveryStrategy DiscoveryStrategy `yaml:"discoveryStrategy,omitempty"`

	// DiscoveryLimit caps the number of discovery entries per query.
	DiscoveryLimit int `yaml:"discoveryLimit,omitempty"`

	// HostModule is the reserved name identifying the host application in
	// the discovery listing. The host is never loaded as a remote module.
	HostModule string `yaml:"hostModule,omitempty"`

	// CallbackPath is the identity-provider redirect landing path.
	CallbackPath string `yaml:"callbackPath,omitempty"`

	// CallbackPort is the local port the login flow listens on for the
	// identity-provider redirect. 0 picks a random free port.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// OutputDir is where the rendered HTML shell is written.
	OutputDir string `yaml:"outputDir,omitempty"`

	// StateDir overrides the storage location (defaults to ~/.config/portico/state).
	StateDir string `yaml:"stateDir,omitempty"`
}

// ClientIDFor returns the configured client id for a tenant name, or the
// empty string when the tenant is unknown.
func (c PlatformConfig) ClientIDFor(tenant string) string {
	return c.Tenants[tenant]
}

// DiscoveryBase returns the base URL used for discovery queries.
func (c PlatformConfig) DiscoveryBase() string {
	if c.Discovery != "" {
		return c.Discovery
	}
	return c.Gateway
}
