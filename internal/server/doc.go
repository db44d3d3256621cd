// Package server implements the storefront web application: routing,
// middleware, and the HTTP handlers gluing authentication, the bundle catalog,
// payments, the purchase ledger, and materialization together.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method
// filtering.
//
// # Storefront Handlers
//
// [Storefront] owns every route. The login flow redirects the browser to the
// provider's consent page; the callback completes the code exchange and adopts
// the token into the visitor's session. Protected routes verify the token by
// pinging the provider's profile endpoint, clearing the session token when the
// check fails so the next visit forces a fresh login.
//
// Checkout hands the browser to the payment provider's hosted page; the
// success route verifies the payment server-side before recording the purchase
// in the ledger. Saving a bundle runs the materialization engine and reports
// per-playlist results as JSON.
//
// # Middleware
//
// Request logging skips the payment-success path, and inbound traffic is
// rate-limited per client IP. Session loading runs before every handler so
// each request carries its visitor's session in the request context.
package server
