// Package tasks orchestrates bundle materialization against the music catalog.
//
// # Core Operations
//
// The [Engine] interface defines two operations:
//
//  1. [Engine.Materialize] : Copy a bundle's playlists into the user's account
//     - Fetches each source playlist from the catalog
//     - Creates a private playlist per source, named after the bundle
//     - Appends track URIs in provider-sized chunks
//     - Collects per-playlist failures instead of aborting the whole bundle
//
//  2. [Engine.CoverArt] : Sample album art for a bundle tile
//     - Walks the bundle's playlists until four distinct covers are found
//     - Pads with a placeholder so callers always get a full grid
//
// # Progress Reporting
//
// Long-running operations emit [ProgressUpdate] values over a caller-supplied
// channel. Sends use select with default so a slow consumer never stalls the
// materialization itself.
//
// # Implementation
//
// [BundleEngine] implements [Engine] over a [services.Service] catalog client,
// with an outbound rate limiter shared across all catalog calls.
package tasks
