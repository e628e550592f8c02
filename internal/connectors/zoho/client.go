package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for throttled and
	// transient responses.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries for 5xx responses.
	RetryDelay = time.Second

	// maxBodyBytes caps a decoded response body.
	maxBodyBytes = 32 << 20
)

// servicePaths maps each product to its API path prefix.
var servicePaths = map[domain.Service]string{
	domain.ServiceBooks:     "/books/v3",
	domain.ServiceInventory: "/inventory/v1",
	domain.ServiceCRM:       "/crm/v2",
}

// Ensure Client implements the interface.
var _ driven.ExternalClient = (*Client)(nil)

// Config holds connection settings for a Client.
type Config struct {
	AccountsURL    string
	APIBaseURL     string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	OrganizationID string

	// RequestsPerSecond caps requests across all services.
	RequestsPerSecond float64

	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client

	// RetryDelay overrides RetryDelay. Used by tests.
	RetryDelay time.Duration
}

// ConfigFromSettings builds a Config from application settings.
func ConfigFromSettings(s domain.SourceSettings) Config {
	return Config{
		AccountsURL:       s.AccountsURL,
		APIBaseURL:        s.APIBaseURL,
		ClientID:          s.ClientID,
		ClientSecret:      s.ClientSecret,
		RefreshToken:      s.RefreshToken,
		OrganizationID:    s.OrganizationID,
		RequestsPerSecond: s.RequestsPerSecond,
	}
}

// Client calls the Zoho REST APIs.
type Client struct {
	baseURL     string
	orgID       string
	http        *http.Client
	tokens      *TokenSource
	rateLimiter *RateLimiter
	retryDelay  time.Duration
}

// NewClient creates a new Zoho API client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIBaseURL == "" || cfg.AccountsURL == "" {
		return nil, fmt.Errorf("%w: api and accounts URLs are required", domain.ErrInvalidInput)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = RetryDelay
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		orgID:       cfg.OrganizationID,
		http:        httpClient,
		tokens:      NewTokenSource(ctx, cfg.AccountsURL, cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken, httpClient),
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
		retryDelay:  retryDelay,
	}, nil
}

// Get issues a GET against endpoint on service and returns the decoded body.
func (c *Client) Get(
	ctx context.Context,
	service domain.Service,
	endpoint string,
	params url.Values,
	principal *domain.Principal,
) (domain.Record, error) {
	reqURL, err := c.buildURL(service, endpoint, params, principal)
	if err != nil {
		return nil, err
	}

	refreshed := false
	delay := c.retryDelay

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.do(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			// Access token revoked or expired early; mint a new one once.
			drain(resp)
			c.tokens.Invalidate()
			refreshed = true
			attempt--
			continue

		case isRetryable(resp.StatusCode) && attempt < MaxRetries:
			wait := retryAfter(resp)
			drain(resp)
			if resp.StatusCode == http.StatusTooManyRequests {
				if wait <= 0 {
					wait = delay
					delay *= 2
				}
				c.rateLimiter.RecordRateLimit(wait)
				logger.Debug("zoho: 429 on %s, backing off", endpoint)
				continue
			}
			logger.Debug("zoho: %d on %s, retrying in %s", resp.StatusCode, endpoint, delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp)
			drain(resp)
			c.rateLimiter.RecordRateLimit(wait)
			return nil, &RateLimitError{RetryAfter: wait, URL: redact(reqURL)}
		}

		return c.decode(resp, reqURL)
	}
}

// buildURL resolves endpoint under the service prefix and adds the
// organisation for products that need it.
func (c *Client) buildURL(
	service domain.Service, endpoint string, params url.Values, principal *domain.Principal,
) (string, error) {
	prefix, ok := servicePaths[service]
	if !ok {
		return "", fmt.Errorf("%w: unknown service %q", domain.ErrInvalidInput, service)
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	if service != domain.ServiceCRM {
		org := principal.Organization(c.orgID)
		if org == "" {
			return "", fmt.Errorf("%w: organization id not configured", domain.ErrAuthRequired)
		}
		query.Set("organization_id", org)
	}

	u := c.baseURL + prefix + "/" + strings.TrimLeft(endpoint, "/")
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u, nil
}

// do sends one authorised request.
func (c *Client) do(ctx context.Context, reqURL string) (*http.Response, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("GET %s: %w: %w", redact(reqURL), domain.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

// decode reads a JSON body, mapping error statuses and in-body error codes.
func (c *Client) decode(resp *http.Response, reqURL string) (domain.Record, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return domain.Record{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			if resp.StatusCode >= 400 {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), URL: redact(reqURL)}
			}
			return nil, fmt.Errorf("decode response: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
	}
	rec := domain.Record(payload)

	code, hasCode := rec.Float("code")
	if resp.StatusCode >= 400 || (hasCode && code != 0) {
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadRequest
		}
		return nil, &APIError{
			StatusCode: status,
			Code:       int(code),
			Message:    rec.String("message"),
			URL:        redact(reqURL),
		}
	}

	if rec == nil {
		rec = domain.Record{}
	}
	return rec, nil
}

// redact strips the query string from a URL for error messages.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
