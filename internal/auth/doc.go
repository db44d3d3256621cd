// Package auth implements the PKCE authorization-code flow against Spotify and per-browser session state.
//
// # Login Flow
//
// [Flow.Begin] generates a code verifier, its S256 challenge, and a random state
// token, stores the pending attempt in a [PendingStore], and returns the provider
// authorize URL. [Flow.Complete] validates the callback, consumes the pending
// attempt (single use, atomic take-and-delete), and exchanges the code plus the
// stored verifier for a token pair.
//
// The state token binds the authorization request to its callback: a state that was
// never issued, already used, or expired fails with [shared.ErrInvalidState], so a
// forged or replayed callback can never complete a login.
//
// # Sessions
//
// [SessionManager] issues an opaque session per browser, carried in a signed JWT
// cookie. Each [Session] owns its token pair; replacement and clearing are atomic,
// so concurrent requests never observe a half-updated pair. Tokens are held
// per-session, never process-wide.
//
// Token refresh is intentionally absent: an expired access token clears the session
// and the next protected action forces a full re-login.
package auth
