package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/illegible-ink/crates/internal/catalog"
	"github.com/illegible-ink/crates/internal/services"
	"github.com/illegible-ink/crates/internal/shared"
)

type mockService struct {
	playlists      map[string]*services.SpotifyPlaylist
	playlistErr    error
	createErr      error
	addErr         error
	createCalls    int
	addCalls       [][]string
	createdUserIDs []string
	createdNames   []string
	createdPublic  []bool
}

func (m *mockService) Name() string { return "Mock" }

func (m *mockService) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	return &services.SpotifyUser{ID: "mock_user"}, nil
}

func (m *mockService) Playlist(ctx context.Context, playlistID string) (*services.SpotifyPlaylist, error) {
	if m.playlistErr != nil {
		return nil, m.playlistErr
	}
	if pl, ok := m.playlists[playlistID]; ok {
		return pl, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (m *mockService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdUserIDs = append(m.createdUserIDs, userID)
	m.createdNames = append(m.createdNames, name)
	m.createdPublic = append(m.createdPublic, public)
	return &services.SpotifyPlaylist{
		ID:   fmt.Sprintf("created_%d", m.createCalls),
		Name: name,
	}, nil
}

func (m *mockService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.addCalls = append(m.addCalls, uris)
	return nil
}

func sourcePlaylist(name string, trackCount int) *services.SpotifyPlaylist {
	pl := &services.SpotifyPlaylist{ID: name, Name: name}
	for i := range trackCount {
		pl.Tracks.Items = append(pl.Tracks.Items, services.SpotifyPlaylistTrack{
			Track: services.SpotifyTrack{
				ID:  fmt.Sprintf("%s_track_%d", name, i),
				URI: fmt.Sprintf("spotify:track:%s_%d", name, i),
				Album: services.SpotifyAlbum{
					Images: []services.SpotifyImage{{URL: fmt.Sprintf("https://img.example/%s_%d.jpg", name, i)}},
				},
			},
		})
	}
	pl.Tracks.Total = trackCount
	return pl
}

func testEngine(svc services.Service) *BundleEngine {
	engine := NewBundleEngine(svc, shared.NewLogger(nil))
	engine.limiter = rate.NewLimiter(rate.Inf, 0)
	return engine
}

func TestBundleEngineMaterialize(t *testing.T) {
	ctx := context.Background()

	t.Run("Copies Every Playlist", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"src_a": sourcePlaylist("src_a", 3),
			"src_b": sourcePlaylist("src_b", 2),
		}}
		engine := testEngine(mock)

		bundle := &catalog.Bundle{ID: "golden-era", Name: "Golden Era", Playlists: []string{"src_a", "src_b"}}
		result, err := engine.Materialize(ctx, nil, "user_1", bundle)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !result.Succeeded() {
			t.Errorf("expected full success, got %d failures", len(result.Failures))
		}
		if len(result.Created) != 2 {
			t.Fatalf("expected 2 created playlists, got %d", len(result.Created))
		}
		if result.Created[0].SourceID != "src_a" || result.Created[1].SourceID != "src_b" {
			t.Errorf("created playlists out of order: %+v", result.Created)
		}
		if result.Created[0].TrackCount != 3 {
			t.Errorf("expected 3 tracks, got %d", result.Created[0].TrackCount)
		}
	})

	t.Run("Names Playlists After The Bundle", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"src_a": sourcePlaylist("src_a", 1),
		}}
		engine := testEngine(mock)

		bundle := &catalog.Bundle{ID: "golden-era", Name: "Golden Era", Playlists: []string{"src_a"}}
		if _, err := engine.Materialize(ctx, nil, "user_1", bundle); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.createdNames) != 1 {
			t.Fatalf("expected 1 create call, got %d", len(mock.createdNames))
		}
		want := "Golden Era - Curated by illegible.ink"
		if mock.createdNames[0] != want {
			t.Errorf("expected name %q, got %q", want, mock.createdNames[0])
		}
		if mock.createdPublic[0] {
			t.Error("materialized playlists must be private")
		}
		if mock.createdUserIDs[0] != "user_1" {
			t.Errorf("expected playlist created for user_1, got %q", mock.createdUserIDs[0])
		}
	})

	t.Run("Chunks Track Additions", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"big": sourcePlaylist("big", 250),
		}}
		engine := testEngine(mock)

		bundle := &catalog.Bundle{ID: "big-set", Name: "Big Set", Playlists: []string{"big"}}
		result, err := engine.Materialize(ctx, nil, "user_1", bundle)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.addCalls) != 3 {
			t.Fatalf("expected 3 add-track calls, got %d", len(mock.addCalls))
		}
		if len(mock.addCalls[0]) != 100 || len(mock.addCalls[1]) != 100 || len(mock.addCalls[2]) != 50 {
			t.Errorf("unexpected chunk sizes: %d, %d, %d",
				len(mock.addCalls[0]), len(mock.addCalls[1]), len(mock.addCalls[2]))
		}
		if result.Created[0].TrackCount != 250 {
			t.Errorf("expected 250 tracks, got %d", result.Created[0].TrackCount)
		}
	})

	t.Run("Collects Per Playlist Failures", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"good": sourcePlaylist("good", 2),
		}}
		engine := testEngine(mock)

		bundle := &catalog.Bundle{ID: "mixed", Name: "Mixed", Playlists: []string{"missing", "good"}}
		result, err := engine.Materialize(ctx, nil, "user_1", bundle)
		if err != nil {
			t.Fatalf("partial failure should not error, got %v", err)
		}

		if len(result.Created) != 1 {
			t.Errorf("expected 1 created playlist, got %d", len(result.Created))
		}
		if len(result.Failures) != 1 {
			t.Fatalf("expected 1 failure, got %d", len(result.Failures))
		}
		if result.Failures[0].SourceID != "missing" {
			t.Errorf("expected failure for 'missing', got %q", result.Failures[0].SourceID)
		}
		if !errors.Is(result.Failures[0].Err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", result.Failures[0].Err)
		}
		if result.Succeeded() {
			t.Error("partial materialization should not report success")
		}
	})

	t.Run("Errors When Nothing Materializes", func(t *testing.T) {
		mock := &mockService{playlistErr: fmt.Errorf("%w: catalog down", shared.ErrTransient)}
		engine := testEngine(mock)

		bundle := &catalog.Bundle{ID: "broken", Name: "Broken", Playlists: []string{"src_a"}}
		result, err := engine.Materialize(ctx, nil, "user_1", bundle)
		if err == nil {
			t.Fatal("expected error when no playlist materializes")
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if len(result.Failures) != 1 {
			t.Errorf("expected the failure recorded, got %d", len(result.Failures))
		}
	})

	t.Run("Skips Empty Source Playlists", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"empty": sourcePlaylist("empty", 0),
			"good":  sourcePlaylist("good", 1),
		}}
		engine := testEngine(mock)

		bundle := &catalog.Bundle{ID: "set", Name: "Set", Playlists: []string{"empty", "good"}}
		result, err := engine.Materialize(ctx, nil, "user_1", bundle)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Created) != 1 || len(result.Failures) != 1 {
			t.Errorf("expected 1 created and 1 failure, got %d and %d",
				len(result.Created), len(result.Failures))
		}
	})

	t.Run("Validates Arguments", func(t *testing.T) {
		engine := testEngine(&mockService{})

		if _, err := engine.Materialize(ctx, nil, "user_1", nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil bundle, got %v", err)
		}
		if _, err := engine.Materialize(ctx, nil, "", &catalog.Bundle{ID: "x", Playlists: []string{"a"}}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty user, got %v", err)
		}
		if _, err := engine.Materialize(ctx, nil, "user_1", &catalog.Bundle{ID: "x"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty bundle, got %v", err)
		}
	})

	t.Run("Reports Progress", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"src_a": sourcePlaylist("src_a", 1),
		}}
		engine := testEngine(mock)

		progress := make(chan ProgressUpdate, 16)
		bundle := &catalog.Bundle{ID: "set", Name: "Set", Playlists: []string{"src_a"}}
		if _, err := engine.Materialize(ctx, progress, "user_1", bundle); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
			if update.Message == "" {
				t.Error("progress update missing message")
			}
		}
		if len(phases) != 3 {
			t.Fatalf("expected 3 progress updates, got %d", len(phases))
		}
		if phases[0] != FetchSource || phases[1] != CreatePlaylist || phases[2] != AddTracks {
			t.Errorf("unexpected phase order: %v", phases)
		}
	})

	t.Run("Stops On Cancelled Context", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"src_a": sourcePlaylist("src_a", 1),
		}}
		engine := testEngine(mock)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		bundle := &catalog.Bundle{ID: "set", Name: "Set", Playlists: []string{"src_a"}}
		if _, err := engine.Materialize(cancelled, nil, "user_1", bundle); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestBundleEngineCoverArt(t *testing.T) {
	ctx := context.Background()

	t.Run("Samples Distinct Covers", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"src_a": sourcePlaylist("src_a", 6),
		}}
		engine := testEngine(mock)

		arts := engine.CoverArt(ctx, &catalog.Bundle{ID: "set", Playlists: []string{"src_a"}})
		if len(arts) != 4 {
			t.Fatalf("expected 4 covers, got %d", len(arts))
		}
		seen := make(map[string]bool)
		for _, art := range arts {
			if seen[art] {
				t.Errorf("duplicate cover %q", art)
			}
			seen[art] = true
			if !strings.HasPrefix(art, "https://img.example/") {
				t.Errorf("unexpected cover url %q", art)
			}
		}
	})

	t.Run("Pads With Placeholder", func(t *testing.T) {
		mock := &mockService{playlists: map[string]*services.SpotifyPlaylist{
			"src_a": sourcePlaylist("src_a", 1),
		}}
		engine := testEngine(mock)

		arts := engine.CoverArt(ctx, &catalog.Bundle{ID: "set", Playlists: []string{"src_a"}})
		if len(arts) != 4 {
			t.Fatalf("expected 4 covers, got %d", len(arts))
		}
		for _, art := range arts[1:] {
			if art != placeholderArt {
				t.Errorf("expected placeholder, got %q", art)
			}
		}
	})

	t.Run("Survives Fetch Errors", func(t *testing.T) {
		mock := &mockService{playlistErr: fmt.Errorf("%w: down", shared.ErrTransient)}
		engine := testEngine(mock)

		arts := engine.CoverArt(ctx, &catalog.Bundle{ID: "set", Playlists: []string{"src_a"}})
		if len(arts) != 4 {
			t.Fatalf("expected 4 covers, got %d", len(arts))
		}
		for _, art := range arts {
			if art != placeholderArt {
				t.Errorf("expected placeholder, got %q", art)
			}
		}
	})
}
