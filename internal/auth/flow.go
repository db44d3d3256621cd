package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/illegible-ink/crates/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// TokenPair holds the credentials minted by a completed login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RedirectTarget is the outcome of [Flow.Begin]: where to send the browser, and
// the state token bound to the attempt.
type RedirectTarget struct {
	URL   string
	State string
}

// Flow runs the PKCE authorization-code flow against the identity provider.
type Flow struct {
	config  *oauth2.Config
	pending PendingStore
	logger  *log.Logger
}

// NewFlow creates a [Flow] for the configured Spotify application. Spotify PKCE
// clients are public: only the client id and redirect URI are required.
func NewFlow(cfg shared.SpotifyConfig, pending PendingStore, logger *log.Logger) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: spotify redirect_uri", shared.ErrMissingCredentials)
	}
	if pending == nil {
		pending = NewMemoryPendingStore(0, 0)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"playlist-modify-public", "playlist-modify-private"}
	}

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &Flow{config: config, pending: pending, logger: logger}, nil
}

// Begin starts a login attempt: generates the verifier, challenge, and state,
// records the pending attempt, and returns the provider authorize URL.
func (f *Flow) Begin() (*RedirectTarget, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return nil, err
	}

	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	f.pending.Put(PendingAuth{
		State:        state,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
	})

	url := f.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", ChallengeS256(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	f.logger.Debug("login attempt started", "state", state)
	return &RedirectTarget{URL: url, State: state}, nil
}

// Complete finishes a login attempt from the provider callback parameters.
//
// The pending attempt is consumed before the exchange, so a given state
// completes successfully at most once even under concurrent callbacks.
func (f *Flow) Complete(ctx context.Context, code, state, providerErr string) (*TokenPair, error) {
	if providerErr != "" {
		f.logger.Error("provider denied authorization", "error", providerErr)
		return nil, fmt.Errorf("%w: %s", shared.ErrProviderDenied, providerErr)
	}

	if code == "" || state == "" {
		return nil, shared.ErrMalformedCallback
	}

	pending, ok := f.pending.Take(state)
	if !ok {
		f.logger.Warn("callback with unknown or consumed state", "state", state)
		return nil, shared.ErrInvalidState
	}

	token, err := f.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", pending.CodeVerifier),
	)
	if err != nil {
		return nil, exchangeError(err)
	}

	f.logger.Info("authentication successful")
	return &TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// exchangeError maps a token-endpoint failure to [shared.ErrExchangeFailed],
// carrying the provider's error description when it sent one.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		reason := retrieveErr.ErrorDescription
		if reason == "" {
			reason = retrieveErr.ErrorCode
		}
		if reason == "" {
			reason = strings.TrimSpace(string(retrieveErr.Body))
		}
		if reason != "" {
			return fmt.Errorf("%w: %s", shared.ErrExchangeFailed, reason)
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
}
