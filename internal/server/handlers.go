package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/illegible-ink/crates/internal/auth"
	"github.com/illegible-ink/crates/internal/catalog"
	"github.com/illegible-ink/crates/internal/services"
	"github.com/illegible-ink/crates/internal/shared"
	"github.com/illegible-ink/crates/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PaymentProvider creates and retrieves hosted checkout sessions.
// [services.StripeService] implements it.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, params services.CheckoutParams) (*services.CheckoutSession, error)
	Session(ctx context.Context, sessionID string) (*services.CheckoutSession, error)
}

// Ledger records and queries completed bundle purchases.
// [repositories.PurchaseRepository] implements it.
type Ledger interface {
	Record(userID, setID string, purchasedAt time.Time) error
	Has(userID, setID string) (bool, error)
	ListSetIDs(userID string) ([]string, error)
}

// StorefrontConfig carries the collaborators a [Storefront] glues together.
// NewCatalogClient and NewEngine default to the production implementations;
// tests swap them for doubles.
type StorefrontConfig struct {
	Catalog          *catalog.Catalog
	Flow             *auth.Flow
	Payments         PaymentProvider
	Ledger           Ledger
	BaseURL          string
	Logger           *log.Logger
	NewCatalogClient func(tokens services.TokenSource) services.Service
	NewEngine        func(svc services.Service) tasks.Engine
}

// Storefront owns every route of the web application and implements [Handler].
type Storefront struct {
	catalog    *catalog.Catalog
	flow       *auth.Flow
	payments   PaymentProvider
	ledger     Ledger
	baseURL    string
	logger     *log.Logger
	newCatalog func(tokens services.TokenSource) services.Service
	newEngine  func(svc services.Service) tasks.Engine
	mux        *http.ServeMux
}

// NewStorefront creates the storefront handler from its collaborators.
func NewStorefront(cfg StorefrontConfig) (*Storefront, error) {
	if cfg.Catalog == nil || cfg.Flow == nil || cfg.Payments == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: catalog, flow, payments, and ledger are required", shared.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5173"
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}

	s := &Storefront{
		catalog:    cfg.Catalog,
		flow:       cfg.Flow,
		payments:   cfg.Payments,
		ledger:     cfg.Ledger,
		baseURL:    cfg.BaseURL,
		logger:     cfg.Logger,
		newCatalog: cfg.NewCatalogClient,
		newEngine:  cfg.NewEngine,
	}

	if s.newCatalog == nil {
		s.newCatalog = func(tokens services.TokenSource) services.Service {
			return services.NewSpotifyService(tokens, nil, cfg.Logger)
		}
	}
	if s.newEngine == nil {
		s.newEngine = func(svc services.Service) tasks.Engine {
			return tasks.NewBundleEngine(svc, cfg.Logger)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleLaunch)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /callback", s.handleCallback)
	mux.HandleFunc("GET /playlists", s.handlePlaylists)
	mux.HandleFunc("GET /checkout", s.handleCheckout)
	mux.HandleFunc("GET /success", s.handleSuccess)
	mux.HandleFunc("POST /save", s.handleSave)
	mux.HandleFunc("GET /privacy", s.handlePrivacy)
	mux.HandleFunc("GET /terms", s.handleTerms)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux = mux

	return s, nil
}

// Routes returns the path patterns the storefront serves.
func (s *Storefront) Routes() []string {
	return []string{
		"/", "/login", "/callback", "/playlists", "/checkout", "/success",
		"/save", "/privacy", "/terms", "/logout", "/healthz",
	}
}

// ServeHTTP dispatches to the storefront's route handlers.
func (s *Storefront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Storefront) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// authenticate resolves the visitor's session into a verified user and a
// catalog client bound to the session's token. A failed verification clears
// the token so the next visit forces a fresh login.
func (s *Storefront) authenticate(w http.ResponseWriter, r *http.Request) (*services.SpotifyUser, services.Service, bool) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		s.denyAuth(w, r)
		return nil, nil, false
	}
	if _, ok := session.Token(); !ok {
		s.denyAuth(w, r)
		return nil, nil, false
	}

	svc := s.newCatalog(session)
	user, err := svc.CurrentUser(r.Context())
	if err != nil {
		s.logger.Warn("session token rejected", "error", err)
		session.Clear()
		s.denyAuth(w, r)
		return nil, nil, false
	}

	return user, svc, true
}

func (s *Storefront) denyAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Storefront) handleLaunch(w http.ResponseWriter, r *http.Request) {
	s.render(w, "launch", nil)
}

func (s *Storefront) handleLogin(w http.ResponseWriter, r *http.Request) {
	target, err := s.flow.Begin()
	if err != nil {
		s.logger.Error("failed to begin login", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target.URL, http.StatusFound)
}

func (s *Storefront) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pair, err := s.flow.Complete(r.Context(), q.Get("code"), q.Get("state"), q.Get("error"))
	if err != nil {
		s.logger.Warn("login callback rejected", "error", err)
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	session, ok := SessionFrom(r.Context())
	if !ok {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	session.SetToken(*pair)
	http.Redirect(w, r, "/playlists", http.StatusFound)
}

// bundleView is the per-bundle render model for the playlists page.
type bundleView struct {
	catalog.Bundle
	CoverArts []string
	Unlocked  bool
	Highlight bool
}

type playlistsView struct {
	DisplayName string
	Bundles     []bundleView
}

func (s *Storefront) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	user, svc, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	setIDs, err := s.ledger.ListSetIDs(user.ID)
	if err != nil {
		s.logger.Error("failed to load purchases", "user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	purchased := make(map[string]bool, len(setIDs))
	for _, id := range setIDs {
		purchased[id] = true
	}

	engine := s.newEngine(svc)
	highlight := r.URL.Query().Get("highlight")

	view := playlistsView{DisplayName: user.DisplayName}
	if view.DisplayName == "" {
		view.DisplayName = user.ID
	}
	for _, bundle := range s.catalog.All() {
		view.Bundles = append(view.Bundles, bundleView{
			Bundle:    bundle,
			CoverArts: engine.CoverArt(r.Context(), &bundle),
			Unlocked:  bundle.Free || purchased[bundle.ID],
			Highlight: bundle.ID == highlight,
		})
	}

	s.render(w, "playlists", view)
}

func (s *Storefront) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	setID := r.URL.Query().Get("setId")
	bundle, found := s.catalog.Get(setID)
	if !found || bundle.Free {
		http.Redirect(w, r, "/playlists", http.StatusFound)
		return
	}

	successURL := fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}&setId=%s&userId=%s",
		s.baseURL, url.QueryEscape(bundle.ID), url.QueryEscape(user.ID))

	checkout, err := s.payments.CreateCheckoutSession(r.Context(), services.CheckoutParams{
		ProductName: fmt.Sprintf("Access to %s Curation", bundle.Name),
		AmountCents: bundle.PriceCents,
		Currency:    "usd",
		SuccessURL:  successURL,
		CancelURL:   s.baseURL + "/playlists",
	})
	if err != nil {
		s.logger.Error("failed to create checkout session", "set_id", bundle.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Checkout failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": checkout.URL})
}

// handleSuccess verifies the payment server-side before touching the ledger.
// The payment status comes from the provider, never from the redirect URL.
func (s *Storefront) handleSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	setID := q.Get("setId")
	userID := q.Get("userId")

	if _, found := s.catalog.Get(setID); !found || sessionID == "" || userID == "" {
		http.Redirect(w, r, "/playlists", http.StatusFound)
		return
	}

	checkout, err := s.payments.Session(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to verify payment", "session_id", sessionID, "error", err)
		http.Redirect(w, r, "/playlists", http.StatusFound)
		return
	}

	if checkout.Paid() {
		if err := s.ledger.Record(userID, setID, time.Now()); err != nil {
			s.logger.Error("failed to record purchase", "user_id", userID, "set_id", setID, "error", err)
			http.Redirect(w, r, "/playlists", http.StatusFound)
			return
		}
		s.logger.Info("purchase recorded", "user_id", userID, "set_id", setID)
	}

	http.Redirect(w, r, "/playlists?highlight="+url.QueryEscape(setID), http.StatusFound)
}

type saveRequest struct {
	SetID string `json:"setId"`
}

type saveResponse struct {
	Success    bool   `json:"success"`
	PlaylistID string `json:"playlistId"`
	Created    int    `json:"created"`
	Failed     int    `json:"failed,omitempty"`
}

func (s *Storefront) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	bundle, found := s.catalog.Get(req.SetID)
	if !found {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid set"})
		return
	}

	user, svc, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if !bundle.Free {
		owned, err := s.ledger.Has(user.ID, bundle.ID)
		if err != nil {
			s.logger.Error("failed to check purchase", "user_id", user.ID, "set_id", bundle.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save curated playlists"})
			return
		}
		if !owned {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Set not purchased"})
			return
		}
	}

	engine := s.newEngine(svc)
	result, err := engine.Materialize(r.Context(), nil, user.ID, &bundle)
	if err != nil {
		s.logger.Error("failed to materialize bundle", "user_id", user.ID, "set_id", bundle.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save curated playlists"})
		return
	}

	writeJSON(w, http.StatusOK, saveResponse{
		Success:    true,
		PlaylistID: result.Created[0].PlaylistID,
		Created:    len(result.Created),
		Failed:     len(result.Failures),
	})
}

func (s *Storefront) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	s.render(w, "privacy", nil)
}

func (s *Storefront) handleTerms(w http.ResponseWriter, r *http.Request) {
	s.render(w, "terms", nil)
}

func (s *Storefront) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := SessionFrom(r.Context()); ok {
		session.Clear()
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Storefront) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
