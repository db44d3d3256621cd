// package services defines interface Service for the music-catalog API surface
package services

import (
	"context"

	"github.com/illegible-ink/crates/internal/auth"
)

// Service defines the catalog operations the storefront performs against the
// music provider. Implementations apply the retry policy internally; callers
// never reach the provider directly.
type Service interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// Playlist retrieves a playlist with its track listing.
	Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error)

	// CreatePlaylist creates a playlist in the user's account.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error)

	// AddTracks appends track URIs to a playlist (up to 100 per call).
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// Name returns the provider name (e.g., "Spotify")
	Name() string
}

// TokenSource supplies the current session's credentials to a catalog client.
// [auth.Session] implements it.
type TokenSource interface {
	Token() (auth.TokenPair, bool)
}
