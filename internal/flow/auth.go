package flow

import "context"

// Authenticator is the boundary to the hosted identity provider. The
// provider initializes asynchronously, so sign-in status is unknown until
// WaitUntilLoaded returns.
type Authenticator interface {
	// WaitUntilLoaded blocks until the provider has resolved the sign-in
	// status, then reports it. Returns the context error on cancellation.
	WaitUntilLoaded(ctx context.Context) (signedIn bool, err error)

	// Token returns a bearer token for API calls. Only valid when signed in.
	Token(ctx context.Context) (string, error)

	// SignInURL returns the hosted sign-in page, configured to land the
	// user back on returnURL afterwards.
	SignInURL(returnURL string) string
}
