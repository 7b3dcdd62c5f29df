// Package logging provides the subsystem-tagged logging facility used
// across portico. It is a thin layer over log/slog: every call names the
// subsystem it originates from (Session, Registry, TokenExchange, ...) so
// log output can be filtered per concern.
//
// Init must be called once at startup; log calls made before Init are
// silently dropped.
package logging
