// Package idp handles the identity-provider side of session acquisition:
// the one-shot exchange of an authorization code arriving on the callback
// route, and the temporary local HTTP server that receives the redirect
// during a CLI login.
//
// The exchange is deliberately not a general OAuth client. It speaks the
// gateway's authn endpoint only and trusts its response shape.
package idp
