// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/illegible-ink/crates/internal/shared"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// maxTracksPerAdd is the provider's limit on URIs per add-tracks call.
const maxTracksPerAdd = 100

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyAlbum represents the album a track belongs to.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Album SpotifyAlbum `json:"album"`
	URI   string       `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

type playlistTracks struct {
	Total int                    `json:"total"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// TrackURIs returns the playlist's track URIs in listing order.
func (p *SpotifyPlaylist) TrackURIs() []string {
	uris := make([]string, 0, len(p.Tracks.Items))
	for _, item := range p.Tracks.Items {
		if item.Track.URI != "" {
			uris = append(uris, item.Track.URI)
		}
	}
	return uris
}

// SpotifyService implements [Service]. Credentials come from the per-session
// [TokenSource] at call time and every request runs under the retrier.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	retrier    *Retrier
	tokens     TokenSource
	logger     *log.Logger
}

// NewSpotifyService creates a catalog client reading credentials from tokens.
func NewSpotifyService(tokens TokenSource, retrier *Retrier, logger *log.Logger) *SpotifyService {
	if retrier == nil {
		retrier = NewRetrier(DefaultRetryPolicy(), logger)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyService{
		baseURL:    spotifyBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retrier:    retrier,
		tokens:     tokens,
		logger:     logger,
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs one authenticated HTTP request to the Spotify API and
// classifies the outcome for the retry loop.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	pair, ok := s.tokens.Token()
	if !ok {
		return shared.ErrNotAuthenticated
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Status:     resp.StatusCode,
			RetryAfter: retryAfterHint(resp),
			Body:       string(bytes.TrimSpace(raw)),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// retryAfterHint reads the provider's Retry-After header (seconds form).
func retryAfterHint(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	err := s.retrier.Do(ctx, "current_user", func(ctx context.Context) error {
		return s.doRequest(ctx, http.MethodGet, "/me", nil, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist retrieves a playlist by ID with its track listing.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", playlistID)
	err := s.retrier.Do(ctx, "get_playlist", func(ctx context.Context) error {
		return s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist)
	})
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

// CreatePlaylist creates a playlist in the given user's account.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error) {
	if userID == "" || name == "" {
		return nil, fmt.Errorf("%w: user id and playlist name required", shared.ErrInvalidInput)
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", userID)
	err := s.retrier.Do(ctx, "create_playlist", func(ctx context.Context) error {
		return s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist)
	})
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends up to 100 track URIs to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track URIs provided", shared.ErrInvalidInput)
	}
	if len(uris) > maxTracksPerAdd {
		return fmt.Errorf("%w: maximum %d track URIs per call", shared.ErrInvalidInput, maxTracksPerAdd)
	}

	body := map[string]any{"uris": uris}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return s.retrier.Do(ctx, "add_tracks", func(ctx context.Context) error {
		return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
	})
}
