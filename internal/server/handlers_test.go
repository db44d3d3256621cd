package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/illegible-ink/crates/internal/auth"
	"github.com/illegible-ink/crates/internal/catalog"
	"github.com/illegible-ink/crates/internal/services"
	"github.com/illegible-ink/crates/internal/shared"
	testutil "github.com/illegible-ink/crates/internal/testing"
)

const testCatalogTOML = `
[[bundle]]
id = "free-set"
name = "Free Set"
playlists = ["pl_free"]
free = true

[[bundle]]
id = "paid-set"
name = "Paid Set"
price_cents = 499
playlists = ["pl_paid"]
`

type memLedger struct {
	rows      map[string][]string
	recordErr error
	hasErr    error
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string][]string)}
}

func (l *memLedger) Record(userID, setID string, purchasedAt time.Time) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	for _, id := range l.rows[userID] {
		if id == setID {
			return nil
		}
	}
	l.rows[userID] = append(l.rows[userID], setID)
	return nil
}

func (l *memLedger) Has(userID, setID string) (bool, error) {
	if l.hasErr != nil {
		return false, l.hasErr
	}
	for _, id := range l.rows[userID] {
		if id == setID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) ListSetIDs(userID string) ([]string, error) {
	return l.rows[userID], nil
}

type fakePayments struct {
	createdParams []services.CheckoutParams
	createErr     error
	sessions      map[string]*services.CheckoutSession
	sessionErr    error
}

func (f *fakePayments) CreateCheckoutSession(ctx context.Context, params services.CheckoutParams) (*services.CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdParams = append(f.createdParams, params)
	return &services.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.example/cs_test"}, nil
}

func (f *fakePayments) Session(ctx context.Context, sessionID string) (*services.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	if session, ok := f.sessions[sessionID]; ok {
		return session, nil
	}
	return nil, fmt.Errorf("%w: session %s", shared.ErrPaymentFailed, sessionID)
}

type harness struct {
	router   *BasicRouter
	store    *Storefront
	flow     *auth.Flow
	sessions *auth.SessionManager
	mock     *testutil.MockService
	ledger   *memLedger
	payments *fakePayments
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := shared.NewLogger(io.Discard)

	cat, err := catalog.Parse([]byte(testCatalogTOML))
	if err != nil {
		t.Fatalf("failed to parse test catalog: %v", err)
	}

	flow, err := auth.NewFlow(shared.SpotifyConfig{
		ClientID:    "test_client",
		RedirectURI: "http://localhost:5173/callback",
	}, nil, logger)
	if err != nil {
		t.Fatalf("failed to create flow: %v", err)
	}

	manager, err := auth.NewSessionManager("test-session-secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}

	mock := &testutil.MockService{
		Playlists: map[string]*services.SpotifyPlaylist{
			"pl_free": testutil.TrackedPlaylist("pl_free", 2),
			"pl_paid": testutil.TrackedPlaylist("pl_paid", 3),
		},
	}
	ledger := newMemLedger()
	payments := &fakePayments{sessions: make(map[string]*services.CheckoutSession)}

	store, err := NewStorefront(StorefrontConfig{
		Catalog:  cat,
		Flow:     flow,
		Payments: payments,
		Ledger:   ledger,
		BaseURL:  "http://localhost:5173",
		Logger:   logger,
		NewCatalogClient: func(tokens services.TokenSource) services.Service {
			return mock
		},
	})
	if err != nil {
		t.Fatalf("failed to create storefront: %v", err)
	}

	router := NewBasicRouter()
	router.Use(WithSessions(manager, logger))
	router.Handler(store)

	return &harness{
		router:   router,
		store:    store,
		flow:     flow,
		sessions: manager,
		mock:     mock,
		ledger:   ledger,
		payments: payments,
	}
}

// loggedIn issues a session holding a token and returns its cookie.
func (h *harness) loggedIn(t *testing.T) (*auth.Session, *http.Cookie) {
	t.Helper()

	rec := httptest.NewRecorder()
	session, err := h.sessions.Issue(rec)
	if err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}
	session.SetToken(auth.TokenPair{AccessToken: "access_token"})

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 session cookie, got %d", len(cookies))
	}
	return session, cookies[0]
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestStorefrontPages(t *testing.T) {
	h := newHarness(t)

	t.Run("Launch Page", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Log in with Spotify") {
			t.Error("launch page missing login link")
		}
	})

	t.Run("Privacy And Terms", func(t *testing.T) {
		for _, path := range []string{"/privacy", "/terms"} {
			rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200 for %s, got %d", path, rec.Code)
			}
		}
	})

	t.Run("Healthz", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]string
		decodeJSON(t, rec, &body)
		if body["status"] != "ok" {
			t.Errorf("expected status ok, got %q", body["status"])
		}
	})

	t.Run("Unknown Path", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestStorefrontLogin(t *testing.T) {
	h := newHarness(t)

	t.Run("Redirects To Provider", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/login", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}

		location, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid redirect location: %v", err)
		}
		if location.Host != "accounts.spotify.com" {
			t.Errorf("expected provider host, got %q", location.Host)
		}
		q := location.Query()
		if q.Get("code_challenge_method") != "S256" {
			t.Errorf("expected S256 challenge method, got %q", q.Get("code_challenge_method"))
		}
		if q.Get("state") == "" || q.Get("code_challenge") == "" {
			t.Error("redirect missing state or code_challenge")
		}
	})
}

func TestStorefrontCallback(t *testing.T) {
	t.Run("Provider Error Rejected", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Missing Code Rejected", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/callback?state=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Unknown State Rejected", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=unknown", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Adopts Token Into Session", func(t *testing.T) {
		h := newHarness(t)

		target, err := h.flow.Begin()
		if err != nil {
			t.Fatalf("failed to begin flow: %v", err)
		}

		session, cookie := h.loggedIn(t)
		session.Clear()

		tokenBody := `{"access_token":"fresh_token","token_type":"Bearer","refresh_token":"fresh_refresh"}`
		transport := testutil.NewMockRoundTripper(&http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(tokenBody)),
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/callback?code=auth_code&state="+target.State, nil)
		req.AddCookie(cookie)
		ctx := context.WithValue(req.Context(), oauth2.HTTPClient, &http.Client{Transport: transport})
		req = req.WithContext(ctx)

		rec := h.do(req)
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Location") != "/playlists" {
			t.Errorf("expected redirect to /playlists, got %q", rec.Header().Get("Location"))
		}

		pair, ok := session.Token()
		if !ok {
			t.Fatal("expected session to hold a token after callback")
		}
		if pair.AccessToken != "fresh_token" || pair.RefreshToken != "fresh_refresh" {
			t.Errorf("unexpected token pair: %+v", pair)
		}
	})
}

func TestStorefrontAuthGate(t *testing.T) {
	t.Run("Anonymous Page Redirects To Login", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/playlists", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if rec.Header().Get("Location") != "/login" {
			t.Errorf("expected redirect to /login, got %q", rec.Header().Get("Location"))
		}
	})

	t.Run("Anonymous Post Gets 401 JSON", func(t *testing.T) {
		h := newHarness(t)
		req := httptest.NewRequest(http.MethodPost, "/save", strings.NewReader(`{"setId":"free-set"}`))
		rec := h.do(req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		var body map[string]string
		decodeJSON(t, rec, &body)
		if body["error"] != "Authentication required" {
			t.Errorf("unexpected error message %q", body["error"])
		}
	})

	t.Run("Rejected Token Is Cleared", func(t *testing.T) {
		h := newHarness(t)
		h.mock.UserErr = fmt.Errorf("%w: token expired", shared.ErrTokenExpired)

		session, cookie := h.loggedIn(t)
		req := httptest.NewRequest(http.MethodGet, "/playlists", nil)
		req.AddCookie(cookie)

		rec := h.do(req)
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if _, ok := session.Token(); ok {
			t.Error("expected session token cleared after rejection")
		}
	})
}

func TestStorefrontPlaylists(t *testing.T) {
	h := newHarness(t)
	h.ledger.Record("mock_user", "paid-set", time.Now())

	_, cookie := h.loggedIn(t)
	req := httptest.NewRequest(http.MethodGet, "/playlists?highlight=paid-set", nil)
	req.AddCookie(cookie)

	rec := h.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Free Set") || !strings.Contains(body, "Paid Set") {
		t.Error("playlists page missing bundles")
	}
	if !strings.Contains(body, "Mock User") {
		t.Error("playlists page missing display name")
	}
	if !strings.Contains(body, `id="bundle-paid-set"`) || !strings.Contains(body, "highlight") {
		t.Error("expected purchased bundle highlighted")
	}
	if !strings.Contains(body, "img.example") {
		t.Error("expected sampled cover art in page")
	}
}

func TestStorefrontCheckout(t *testing.T) {
	t.Run("Free Bundle Redirects", func(t *testing.T) {
		h := newHarness(t)
		_, cookie := h.loggedIn(t)
		req := httptest.NewRequest(http.MethodGet, "/checkout?setId=free-set", nil)
		req.AddCookie(cookie)

		rec := h.do(req)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/playlists" {
			t.Errorf("expected redirect to /playlists, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("Unknown Bundle Redirects", func(t *testing.T) {
		h := newHarness(t)
		_, cookie := h.loggedIn(t)
		req := httptest.NewRequest(http.MethodGet, "/checkout?setId=nope", nil)
		req.AddCookie(cookie)

		rec := h.do(req)
		if rec.Code != http.StatusFound {
			t.Errorf("expected 302, got %d", rec.Code)
		}
	})

	t.Run("Creates Hosted Session", func(t *testing.T) {
		h := newHarness(t)
		_, cookie := h.loggedIn(t)
		req := httptest.NewRequest(http.MethodGet, "/checkout?setId=paid-set", nil)
		req.AddCookie(cookie)

		rec := h.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var body map[string]string
		decodeJSON(t, rec, &body)
		if body["url"] != "https://checkout.stripe.example/cs_test" {
			t.Errorf("unexpected checkout url %q", body["url"])
		}

		if len(h.payments.createdParams) != 1 {
			t.Fatalf("expected 1 checkout session, got %d", len(h.payments.createdParams))
		}
		params := h.payments.createdParams[0]
		if params.ProductName != "Access to Paid Set Curation" {
			t.Errorf("unexpected product name %q", params.ProductName)
		}
		if params.AmountCents != 499 {
			t.Errorf("expected amount 499, got %d", params.AmountCents)
		}
		for _, want := range []string{"{CHECKOUT_SESSION_ID}", "setId=paid-set", "userId=mock_user"} {
			if !strings.Contains(params.SuccessURL, want) {
				t.Errorf("success url missing %q: %s", want, params.SuccessURL)
			}
		}
	})

	t.Run("Provider Failure Is 500", func(t *testing.T) {
		h := newHarness(t)
		h.payments.createErr = fmt.Errorf("stripe is down")
		_, cookie := h.loggedIn(t)
		req := httptest.NewRequest(http.MethodGet, "/checkout?setId=paid-set", nil)
		req.AddCookie(cookie)

		rec := h.do(req)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestStorefrontSuccess(t *testing.T) {
	t.Run("Records Paid Purchase", func(t *testing.T) {
		h := newHarness(t)
		h.payments.sessions["cs_paid"] = &services.CheckoutSession{ID: "cs_paid", PaymentStatus: "paid"}

		rec := h.do(httptest.NewRequest(http.MethodGet,
			"/success?session_id=cs_paid&setId=paid-set&userId=user_9", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if rec.Header().Get("Location") != "/playlists?highlight=paid-set" {
			t.Errorf("unexpected redirect %q", rec.Header().Get("Location"))
		}

		owned, _ := h.ledger.Has("user_9", "paid-set")
		if !owned {
			t.Error("expected purchase recorded in ledger")
		}
	})

	t.Run("Unpaid Session Not Recorded", func(t *testing.T) {
		h := newHarness(t)
		h.payments.sessions["cs_unpaid"] = &services.CheckoutSession{ID: "cs_unpaid", PaymentStatus: "unpaid"}

		h.do(httptest.NewRequest(http.MethodGet,
			"/success?session_id=cs_unpaid&setId=paid-set&userId=user_9", nil))

		owned, _ := h.ledger.Has("user_9", "paid-set")
		if owned {
			t.Error("unpaid session must not touch the ledger")
		}
	})

	t.Run("Missing Params Redirect", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/success?setId=paid-set", nil))
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/playlists" {
			t.Errorf("expected redirect to /playlists, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("Verification Failure Redirects", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet,
			"/success?session_id=cs_missing&setId=paid-set&userId=user_9", nil))
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/playlists" {
			t.Errorf("expected redirect to /playlists, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
	})
}

func TestStorefrontSave(t *testing.T) {
	saveReq := func(setID string, cookie *http.Cookie) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/save",
			strings.NewReader(fmt.Sprintf(`{"setId":%q}`, setID)))
		req.Header.Set("Content-Type", "application/json")
		if cookie != nil {
			req.AddCookie(cookie)
		}
		return req
	}

	t.Run("Free Bundle Materializes", func(t *testing.T) {
		h := newHarness(t)
		_, cookie := h.loggedIn(t)

		rec := h.do(saveReq("free-set", cookie))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var body saveResponse
		decodeJSON(t, rec, &body)
		if !body.Success || body.PlaylistID == "" {
			t.Errorf("unexpected save response: %+v", body)
		}
		if h.mock.CreateCalls != 1 {
			t.Errorf("expected 1 playlist created, got %d", h.mock.CreateCalls)
		}
	})

	t.Run("Paid Bundle Requires Purchase", func(t *testing.T) {
		h := newHarness(t)
		_, cookie := h.loggedIn(t)

		rec := h.do(saveReq("paid-set", cookie))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		var body map[string]string
		decodeJSON(t, rec, &body)
		if body["error"] != "Set not purchased" {
			t.Errorf("unexpected error %q", body["error"])
		}
		if h.mock.CreateCalls != 0 {
			t.Error("locked bundle must not materialize")
		}
	})

	t.Run("Purchased Bundle Materializes", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.Record("mock_user", "paid-set", time.Now())
		_, cookie := h.loggedIn(t)

		rec := h.do(saveReq("paid-set", cookie))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Invalid Set Rejected", func(t *testing.T) {
		h := newHarness(t)
		_, cookie := h.loggedIn(t)

		rec := h.do(saveReq("nope", cookie))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Materialization Failure Is 500", func(t *testing.T) {
		h := newHarness(t)
		h.mock.PlaylistErr = fmt.Errorf("%w: catalog down", shared.ErrTransient)
		_, cookie := h.loggedIn(t)

		rec := h.do(saveReq("free-set", cookie))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestStorefrontLogout(t *testing.T) {
	h := newHarness(t)
	session, cookie := h.loggedIn(t)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookie)

	rec := h.do(req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Errorf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if _, ok := session.Token(); ok {
		t.Error("expected token cleared on logout")
	}
}
