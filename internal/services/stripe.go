// Stripe hosted-checkout client for paid bundle purchases
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/illegible-ink/crates/internal/shared"
)

const stripeBaseURL = "https://api.stripe.com"

// CheckoutSession represents a Stripe checkout session.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"` // paid, unpaid, no_payment_required
}

// Paid reports whether the session's payment completed.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// CheckoutParams describes a hosted checkout for one bundle.
type CheckoutParams struct {
	ProductName string
	AmountCents int64
	Currency    string // defaults to usd
	SuccessURL  string
	CancelURL   string
}

// StripeService creates and retrieves hosted checkout sessions via Stripe's
// form-encoded REST API.
type StripeService struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *log.Logger
}

// NewStripeService creates a payments client authenticated with the account's secret key.
func NewStripeService(secretKey string, logger *log.Logger) (*StripeService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StripeService{
		baseURL:    stripeBaseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

// CreateCheckoutSession creates a hosted checkout session for a fixed amount.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if params.ProductName == "" || params.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: product name and positive amount required", shared.ErrInvalidInput)
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return nil, fmt.Errorf("%w: success and cancel URLs required", shared.ErrInvalidInput)
	}

	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)

	var session CheckoutSession
	if err := s.doForm(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}

	s.logger.Info("checkout session created", "session_id", session.ID)
	return &session, nil
}

// Session retrieves a checkout session's current state by id.
func (s *StripeService) Session(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", shared.ErrInvalidInput)
	}

	var session CheckoutSession
	endpoint := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := s.doForm(ctx, http.MethodGet, endpoint, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// doForm performs an authenticated form-encoded request against the Stripe API.
func (s *StripeService) doForm(ctx context.Context, method, endpoint string, form url.Values, result any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, stripeErrorMessage(resp))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// stripeErrorMessage extracts the error message from a failed Stripe response.
func stripeErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Error.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
