// package tasks implements bundle materialization and cover-art sampling.
//
// The core abstraction is Engine, which copies a purchased bundle's source
// playlists into the authenticated user's account. Operations emit progress
// updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/illegible-ink/crates/internal/catalog"
	"github.com/illegible-ink/crates/internal/services"
	"github.com/illegible-ink/crates/internal/shared"
)

// curatorSuffix is appended to every materialized playlist name.
const curatorSuffix = " - Curated by illegible.ink"

// playlistDescription is the fixed description on every materialized playlist.
const playlistDescription = "Curated playlist by illegible.ink, delivered via the Crates storefront"

// coverArtSlots is the number of covers a bundle tile displays.
const coverArtSlots = 4

// placeholderArt pads cover grids for bundles with too few distinct covers.
const placeholderArt = "/images/placeholder.jpg"

// CreatedPlaylist records one playlist materialized into the user's account.
type CreatedPlaylist struct {
	SourceID   string // Source playlist in the catalog
	PlaylistID string // Newly created playlist in the user's account
	Name       string // Name given to the created playlist
	TrackCount int    // Tracks appended
}

// PlaylistFailure records a source playlist that could not be materialized.
type PlaylistFailure struct {
	SourceID string
	Err      error
}

// MaterializeResult contains all data from a bundle materialization.
type MaterializeResult struct {
	SetID    string            // Bundle that was materialized
	Created  []CreatedPlaylist // Successfully created playlists
	Failures []PlaylistFailure // Source playlists that failed
}

// Succeeded reports whether every source playlist materialized.
func (r *MaterializeResult) Succeeded() bool {
	return len(r.Created) > 0 && len(r.Failures) == 0
}

// Engine defines bundle operations against the user's music account.
type Engine interface {
	// Materialize copies each of the bundle's source playlists into the
	// user's account as a new private playlist. Individual playlist failures
	// are collected in the result; the error return covers failures that
	// invalidate the whole operation.
	Materialize(ctx context.Context, progress chan<- ProgressUpdate, userID string, bundle *catalog.Bundle) (*MaterializeResult, error)

	// CoverArt samples up to four distinct album covers from the bundle's
	// playlists, padding with a placeholder. Always returns four entries.
	CoverArt(ctx context.Context, bundle *catalog.Bundle) []string
}

// BundleEngine implements [Engine] over a catalog client. All provider calls
// pass through a shared rate limiter so bulk operations stay inside the
// provider's request window.
type BundleEngine struct {
	catalog services.Service
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewBundleEngine creates a BundleEngine with the provided catalog client.
func NewBundleEngine(svc services.Service, logger *log.Logger) *BundleEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BundleEngine{
		catalog: svc,
		// Stays under the provider's window while allowing short bursts.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		logger:  logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *BundleEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// wait blocks on the shared limiter, translating limiter errors to ctx errors.
func (e *BundleEngine) wait(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	return nil
}

// Materialize copies the bundle's playlists into the user's account.
func (e *BundleEngine) Materialize(ctx context.Context, progress chan<- ProgressUpdate, userID string, bundle *catalog.Bundle) (*MaterializeResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if bundle == nil {
		return nil, fmt.Errorf("%w: bundle is required", shared.ErrInvalidArgument)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrInvalidArgument)
	}
	if len(bundle.Playlists) == 0 {
		return nil, fmt.Errorf("%w: bundle %q has no playlists", shared.ErrInvalidArgument, bundle.ID)
	}

	result := &MaterializeResult{SetID: bundle.ID}
	total := len(bundle.Playlists)
	name := bundle.Name + curatorSuffix

	for i, sourceID := range bundle.Playlists {
		e.sendProgress(progress, fetchSourceUpdate(i+1, total, sourceID))

		source, err := e.fetchSource(ctx, sourceID)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.logger.Warn("failed to fetch source playlist", "set_id", bundle.ID, "playlist_id", sourceID, "error", err)
			result.Failures = append(result.Failures, PlaylistFailure{SourceID: sourceID, Err: err})
			continue
		}

		uris := source.TrackURIs()
		if len(uris) == 0 {
			result.Failures = append(result.Failures, PlaylistFailure{
				SourceID: sourceID,
				Err:      fmt.Errorf("%w: playlist %q has no tracks", shared.ErrPlaylistNotFound, sourceID),
			})
			continue
		}

		e.sendProgress(progress, createPlaylistUpdate(i+1, total, name))

		created, err := e.copyPlaylist(ctx, userID, name, uris)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.logger.Warn("failed to materialize playlist", "set_id", bundle.ID, "playlist_id", sourceID, "error", err)
			result.Failures = append(result.Failures, PlaylistFailure{SourceID: sourceID, Err: err})
			continue
		}

		created.SourceID = sourceID
		result.Created = append(result.Created, *created)
		e.sendProgress(progress, createdUpdate(i+1, total, created))
	}

	if len(result.Created) == 0 {
		return result, fmt.Errorf("%w: no playlists could be materialized for %q", shared.ErrAPIRequest, bundle.ID)
	}

	e.logger.Info("materialized bundle",
		"set_id", bundle.ID,
		"user_id", userID,
		"created", len(result.Created),
		"failed", len(result.Failures))

	return result, nil
}

func (e *BundleEngine) fetchSource(ctx context.Context, sourceID string) (*services.SpotifyPlaylist, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	return e.catalog.Playlist(ctx, sourceID)
}

// copyPlaylist creates the destination playlist and appends tracks in
// provider-sized chunks.
func (e *BundleEngine) copyPlaylist(ctx context.Context, userID, name string, uris []string) (*CreatedPlaylist, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	dest, err := e.catalog.CreatePlaylist(ctx, userID, name, playlistDescription, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	for start := 0; start < len(uris); start += maxTrackChunk {
		end := min(start+maxTrackChunk, len(uris))
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		if err := e.catalog.AddTracks(ctx, dest.ID, uris[start:end]); err != nil {
			return nil, fmt.Errorf("failed to add tracks to %s: %w", dest.ID, err)
		}
	}

	return &CreatedPlaylist{
		PlaylistID: dest.ID,
		Name:       name,
		TrackCount: len(uris),
	}, nil
}

// maxTrackChunk mirrors the provider's per-call URI limit.
const maxTrackChunk = 100

// CoverArt samples up to four distinct album covers across the bundle's
// playlists. Fetch errors skip the playlist rather than failing the grid.
func (e *BundleEngine) CoverArt(ctx context.Context, bundle *catalog.Bundle) []string {
	arts := make([]string, 0, coverArtSlots)
	seen := make(map[string]bool)

	if bundle != nil && e.catalog != nil {
		for _, sourceID := range bundle.Playlists {
			playlist, err := e.fetchSource(ctx, sourceID)
			if err != nil {
				e.logger.Debug("cover art fetch failed", "playlist_id", sourceID, "error", err)
				continue
			}

			items := playlist.Tracks.Items
			if len(items) > coverArtSlots {
				items = items[:coverArtSlots]
			}
			for _, item := range items {
				if len(item.Track.Album.Images) == 0 {
					continue
				}
				art := item.Track.Album.Images[0].URL
				if art == "" || seen[art] {
					continue
				}
				seen[art] = true
				arts = append(arts, art)
				if len(arts) == coverArtSlots {
					break
				}
			}
			if len(arts) == coverArtSlots {
				break
			}
		}
	}

	for len(arts) < coverArtSlots {
		arts = append(arts, placeholderArt)
	}
	return arts
}
