// Package authenticator declares the middleware contract the router expects
// from the auth layer.
package authenticator

import "net/http"

// Authenticator guards protected routes with bearer-token authentication.
type Authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}
