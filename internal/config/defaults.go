package config

const (
	// DefaultCallbackPath is the identity-provider redirect landing path.
	DefaultCallbackPath = "/oidc-landing"

	// DefaultHostModule is the reserved discovery name of the host application.
	DefaultHostModule = "app-shell"

	// DefaultUsersPath is the gateway path segment for the self-lookup call.
	DefaultUsersPath = "users"

	// DefaultDiscoveryLimit caps discovery queries. Large enough for any
	// realistic deployment, small enough to stay a single page.
	DefaultDiscoveryLimit = 5000
)

// GetDefaultConfig returns the default configuration for portico.
func GetDefaultConfig() PlatformConfig {
	return PlatformConfig{
		UsersPath:         DefaultUsersPath,
		DiscoveryStrategy: DiscoveryByTenant,
		DiscoveryLimit:    DefaultDiscoveryLimit,
		HostModule:        DefaultHostModule,
		CallbackPath:      DefaultCallbackPath,
		CallbackPort:      0,
		OutputDir:         ".",
	}
}
