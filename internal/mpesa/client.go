package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MrJamesThe3rd/mpesaflow/internal/metrics"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultTokenMargin = 60 * time.Second
	defaultTokenTTL    = 3599 * time.Second
	maxBodyBytes       = 1 << 20
)

// Client talks to one Daraja environment. Tokens are cached per consumer key.
type Client struct {
	endpoints   Endpoints
	httpClient  *http.Client
	tokens      *cache.Cache
	tokenMargin time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its transport is still
// wrapped for request metrics.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenMargin sets how long before expiry a cached token is dropped.
func WithTokenMargin(d time.Duration) Option {
	return func(c *Client) {
		c.tokenMargin = d
	}
}

func NewClient(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		endpoints:   endpoints,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		tokens:      cache.New(defaultTokenTTL, 10*time.Minute),
		tokenMargin: defaultTokenMargin,
	}

	for _, opt := range opts {
		opt(c)
	}

	instrumented := *c.httpClient
	instrumented.Transport = metrics.InstrumentTransport(c.httpClient.Transport)
	c.httpClient = &instrumented

	return c
}

// Token returns an OAuth access token for the given consumer credentials.
// Any failure is reported as ErrAuthentication.
func (c *Client) Token(ctx context.Context, consumerKey, consumerSecret string) (string, error) {
	if cached, ok := c.tokens.Get(consumerKey); ok {
		return cached.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.OAuthURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}

	req.SetBasicAuth(consumerKey, consumerSecret)

	var tr tokenResponse
	if err := c.do(req, &tr); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: response carried no access token", ErrAuthentication)
	}

	c.tokens.Set(consumerKey, tr.AccessToken, c.tokenTTL(tr.ExpiresIn))

	return tr.AccessToken, nil
}

func (c *Client) tokenTTL(expiresIn string) time.Duration {
	ttl := defaultTokenTTL

	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	if ttl -= c.tokenMargin; ttl <= 0 {
		return time.Second
	}

	return ttl
}

// Initiate sends an STK push. A response without a CheckoutRequestID, or any
// API error, is reported as ErrInitiation.
func (c *Client) Initiate(ctx context.Context, token string, pr PaymentRequest) (*PaymentResponse, error) {
	if pr.TransactionType == "" {
		pr.TransactionType = TransactionTypePayBill
	}

	req, err := c.jsonRequest(ctx, c.endpoints.ProcessURL, token, pr)
	if err != nil {
		return nil, err
	}

	var resp PaymentResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitiation, err)
	}

	if resp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: response carried no CheckoutRequestID", ErrInitiation)
	}

	return &resp, nil
}

// QueryStatus asks for the result of an STK push. While the customer has not
// answered, the returned error matches ErrProcessing.
func (c *Client) QueryStatus(ctx context.Context, token string, q StatusQuery) (*StatusResponse, error) {
	req, err := c.jsonRequest(ctx, c.endpoints.QueryURL, token, q)
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("querying status: %w", err)
	}

	return &resp, nil
}

func (c *Client) jsonRequest(ctx context.Context, url, token string, body any) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

// do executes req and decodes a 2xx body into out. Error bodies, and 2xx
// bodies carrying an errorCode, are returned as *Error.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	apiErr := &Error{StatusCode: resp.StatusCode}
	_ = json.Unmarshal(body, apiErr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if apiErr.Code == "" && apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		return apiErr
	}

	if apiErr.Code != "" {
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
