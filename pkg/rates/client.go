package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	costPath              = "cost"
	responseBodyReadLimit = 1024
	defaultTimeout        = 5 * time.Second
)

var (
	// ErrRateLimited is returned when the rate API answers 429.
	ErrRateLimited = errors.New("shipping rate api rate limited")

	errAPIKeyRequired  = errors.New("shipping rate api key is required")
	errBaseURLRequired = errors.New("shipping rate api base url is required")
)

// Client calls the external shipping rate API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// QuoteRequest asks for every service a courier offers between two regions.
type QuoteRequest struct {
	OriginRegion      string  `json:"origin"`
	DestinationRegion string  `json:"destination"`
	WeightGrams       int     `json:"weight"`
	Courier           string  `json:"courier"`
	OriginLat         float64 `json:"origin_latitude,omitempty"`
	OriginLng         float64 `json:"origin_longitude,omitempty"`
	DestinationLat    float64 `json:"destination_latitude,omitempty"`
	DestinationLng    float64 `json:"destination_longitude,omitempty"`
}

// Quote is one priced service returned by the rate API.
type Quote struct {
	Courier string
	Service string
	Cost    int64
	ETD     string
}

// Quote fetches the priced services for req. A 429 answer yields ErrRateLimited.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	if c == nil {
		return nil, errors.New("shipping rate client not configured")
	}
	if req.OriginRegion == "" || req.DestinationRegion == "" || req.Courier == "" {
		return nil, errors.New("origin, destination and courier are required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal quote request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+costPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute quote request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, fmt.Errorf("quote request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var apiResp struct {
		Results []struct {
			Courier string `json:"courier"`
			Service string `json:"service"`
			Cost    int64  `json:"cost"`
			ETD     string `json:"etd"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	quotes := make([]Quote, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.Cost <= 0 {
			continue
		}
		quotes = append(quotes, Quote{
			Courier: strings.ToLower(r.Courier),
			Service: r.Service,
			Cost:    r.Cost,
			ETD:     r.ETD,
		})
	}
	return quotes, nil
}
