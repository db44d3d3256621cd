// Package services implements clients for the external providers the storefront depends on.
//
// # Catalog
//
// [SpotifyService] implements [Service], the music-catalog surface the rest of the
// system uses: current user, playlist fetch, playlist creation, track addition.
// Every call goes through a [Retrier] — no caller talks to the provider directly.
//
// # Retry Policy
//
// [Retrier.Do] runs one operation as a bounded state machine. Raw HTTP failures
// are classified by [APIError]: 401 means the credential is stale and fails
// immediately, other 4xx (except 429) mean the request itself is wrong and fail
// immediately, 429 sleeps for the provider's Retry-After hint (or a linear
// backoff) and retries, and network errors or 5xx back off linearly and retry.
// When attempts run out the last error surfaces wrapped in [shared.ErrExhausted].
// Sleeping is injectable, so the machine is testable without a clock.
//
// # Payments
//
// [StripeService] creates and retrieves hosted checkout sessions against
// Stripe's form-encoded REST API.
package services
