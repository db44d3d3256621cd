// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/illegible-ink/crates/internal/services"
	"github.com/illegible-ink/crates/internal/shared"
)

// MockService is a configurable test double for [services.Service].
//
// The zero value serves an authenticated user with no playlists; populate the
// fields to script richer behavior.
type MockService struct {
	User        *services.SpotifyUser
	Playlists   map[string]*services.SpotifyPlaylist
	UserErr     error
	PlaylistErr error
	CreateErr   error
	AddErr      error

	CreateCalls int
	AddCalls    [][]string
}

func (m *MockService) Name() string { return "Mock" }

func (m *MockService) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	if m.User != nil {
		return m.User, nil
	}
	return &services.SpotifyUser{ID: "mock_user", DisplayName: "Mock User"}, nil
}

func (m *MockService) Playlist(ctx context.Context, playlistID string) (*services.SpotifyPlaylist, error) {
	if m.PlaylistErr != nil {
		return nil, m.PlaylistErr
	}
	if pl, ok := m.Playlists[playlistID]; ok {
		return pl, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (m *MockService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return &services.SpotifyPlaylist{
		ID:   fmt.Sprintf("created_%d", m.CreateCalls),
		Name: name,
	}, nil
}

func (m *MockService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.AddCalls = append(m.AddCalls, uris)
	return nil
}

// TrackedPlaylist builds a playlist double with the given number of tracks.
func TrackedPlaylist(id string, trackCount int) *services.SpotifyPlaylist {
	pl := &services.SpotifyPlaylist{ID: id, Name: id}
	for i := range trackCount {
		pl.Tracks.Items = append(pl.Tracks.Items, services.SpotifyPlaylistTrack{
			Track: services.SpotifyTrack{
				ID:  fmt.Sprintf("%s_track_%d", id, i),
				URI: fmt.Sprintf("spotify:track:%s_%d", id, i),
				Album: services.SpotifyAlbum{
					Images: []services.SpotifyImage{{URL: fmt.Sprintf("https://img.example/%s_%d.jpg", id, i)}},
				},
			},
		})
	}
	pl.Tracks.Total = trackCount
	return pl
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
