package revenuecat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.revenuecat.com"
	defaultEntitlement         = "premium"
	responseBodyReadLimit int64 = 1024
)

var (
	errAPIKeyRequired = errors.New("revenuecat api key is required")

	// ErrLookupRejected marks a non-2xx answer from the subscribers endpoint.
	ErrLookupRejected = errors.New("revenuecat subscriber lookup rejected")
)

// Client reads subscriber state from the RevenueCat REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	entitlement string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithEntitlement selects the entitlement that means premium.
func WithEntitlement(id string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			c.entitlement = trimmed
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a RevenueCat client given a secret API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:      trimmedKey,
		baseURL:     defaultBaseURL,
		entitlement: defaultEntitlement,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return client, nil
}

// Entitlement is the normalized state of the configured entitlement.
type Entitlement struct {
	ProductID   string
	ExpiresAt   *time.Time
	PurchasedAt *time.Time
	PeriodType  string
}

// ActiveAt reports whether the entitlement is unexpired at now.
func (e *Entitlement) ActiveAt(now time.Time) bool {
	return e != nil && e.ExpiresAt != nil && e.ExpiresAt.After(now)
}

// Subscriber is the subset of the subscriber document the backend uses.
type Subscriber struct {
	CustomerID  string
	Entitlement *Entitlement
}

// GetSubscriber fetches a subscriber by app user id. A missing entitlement is
// not an error; Subscriber.Entitlement is nil in that case.
func (c *Client) GetSubscriber(ctx context.Context, customerID string) (*Subscriber, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "revenuecat client not configured")
	}
	trimmed := strings.TrimSpace(customerID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "revenuecat_customer_id is required")
	}

	endpoint := c.buildURL("v1/subscribers/" + url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build subscriber request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute subscriber request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("%w: status %d: %s", ErrLookupRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "RevenueCat validation failed")
	}

	var apiResp struct {
		Subscriber struct {
			Entitlements map[string]struct {
				ExpiresDate       *time.Time `json:"expires_date"`
				PurchaseDate      *time.Time `json:"purchase_date"`
				ProductIdentifier string     `json:"product_identifier"`
				PeriodType        string     `json:"period_type"`
			} `json:"entitlements"`
			Subscriptions map[string]struct {
				PeriodType string `json:"period_type"`
			} `json:"subscriptions"`
		} `json:"subscriber"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscriber response")
	}

	sub := &Subscriber{CustomerID: trimmed}
	ent, ok := apiResp.Subscriber.Entitlements[c.entitlement]
	if !ok {
		return sub, nil
	}
	periodType := ent.PeriodType
	if periodType == "" {
		periodType = apiResp.Subscriber.Subscriptions[ent.ProductIdentifier].PeriodType
	}
	sub.Entitlement = &Entitlement{
		ProductID:   ent.ProductIdentifier,
		ExpiresAt:   ent.ExpiresDate,
		PurchasedAt: ent.PurchaseDate,
		PeriodType:  periodType,
	}
	return sub, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
