package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Login-flow errors. Each surfaces as a user-visible authentication
	// failure prompting re-login, never retried.
	ErrProviderDenied    = fmt.Errorf("authorization denied by provider")
	ErrMalformedCallback = fmt.Errorf("missing authorization code or state")
	ErrInvalidState      = fmt.Errorf("invalid or expired state parameter")
	ErrExchangeFailed    = fmt.Errorf("token exchange failed")

	// Session/credential errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Catalog API outcome classes used by the retry wrapper
	ErrRateLimited   = fmt.Errorf("rate limited by provider")
	ErrClientRequest = fmt.Errorf("malformed API request")
	ErrTransient     = fmt.Errorf("transient API failure")
	ErrExhausted     = fmt.Errorf("retry attempts exhausted")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Storefront errors
	ErrBundleNotFound = fmt.Errorf("bundle not found")
	ErrNotPurchased   = fmt.Errorf("bundle not purchased")
	ErrPaymentFailed  = fmt.Errorf("payment not completed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
