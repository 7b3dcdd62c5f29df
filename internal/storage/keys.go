package storage

// Durable tier keys.
const (
	// KeySession is the authoritative session record.
	KeySession = "session"

	// KeyLoginResponse caches the raw identity-backend login payload.
	KeyLoginResponse = "login-response"

	// KeyRegistrySource is the discovery/entitlement source URL the last
	// resolution ran against.
	KeyRegistrySource = "registry-source"

	// KeyHostLocation is the resolved host application location.
	KeyHostLocation = "host-location"

	// KeyRemoteModules is the reconciled remote-module list.
	KeyRemoteModules = "remote-modules"
)

// Signal tier keys.
const (
	// KeySessionSentinel exists while a login is active. Its removal is the
	// cross-process logout broadcast; the value itself is meaningless.
	KeySessionSentinel = "session-active"

	// KeyTenantContext is the tenant identity used to initiate login. It
	// must survive the full-page redirect round trip to the identity
	// provider, so it cannot live in the per-process transient tier.
	KeyTenantContext = "tenant-context"
)
