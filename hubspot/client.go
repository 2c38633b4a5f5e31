// ABOUTME: HubSpot CRM v3 contacts API client
// ABOUTME: Fetches contacts one cursor page at a time with bearer-token auth via oauth2
package hubspot

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

	"github.com/clear-match/clearmatch/logger"
	"github.com/clear-match/clearmatch/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.hubapi.com"
	DefaultPageSize = 100
	MaxPageSize     = 100

	// DefaultRequestsPerSecond stays under HubSpot's 100 requests per 10 seconds app limit.
	DefaultRequestsPerSecond = 10

	contactsPath = "/crm/v3/objects/contacts"

	// errorBodyLimit caps how much of a failed response is kept on APIError.
	errorBodyLimit = 4096
)

// APIError is returned when HubSpot answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot api returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Token      string
	PageSize   int
	Properties []string
	Timeout    time.Duration

	// RequestsPerSecond throttles outgoing requests. Negative disables throttling.
	RequestsPerSecond float64

	// HTTPClient, when set, is used as the base transport under the bearer token.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client reads contact pages from HubSpot.
type Client struct {
	baseURL    string
	pageSize   int
	properties []string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type contactsResponse struct {
	Results []contactResult `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

type contactResult struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
	CreatedAt  string             `json:"createdAt"`
	UpdatedAt  string             `json:"updatedAt"`
	Archived   bool               `json:"archived"`
}

// New builds a Client. An empty token is rejected since every HubSpot call needs one.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("hubspot access token is required")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid hubspot base url: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.Token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = timeout

	limiter := rate.NewLimiter(rate.Inf, 1)
	switch rps := opts.RequestsPerSecond; {
	case rps == 0:
		limiter = rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1)
	case rps > 0:
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &Client{
		baseURL:    baseURL,
		pageSize:   ClampPageSize(opts.PageSize),
		properties: append([]string(nil), opts.Properties...),
		httpClient: httpClient,
		limiter:    limiter,
		logger:     log,
	}, nil
}

// ClampPageSize bounds n to [1, MaxPageSize], treating non-positive values as the default.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// FetchPage returns one page of contacts starting at the after cursor. An empty cursor
// requests the first page.
func (c *Client) FetchPage(ctx context.Context, after string) (*models.ContactPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if len(c.properties) > 0 {
		q.Set("properties", strings.Join(c.properties, ","))
	}
	if after != "" {
		q.Set("after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+contactsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build hubspot request: %w", err)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("hubspot rate limiter: %w", err)
	}

	c.logger.Debug("fetching hubspot contacts", zap.String("after", after), zap.Int("limit", c.pageSize))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hubspot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		c.logger.Warn("hubspot request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logger.Truncate(string(body), 200)),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded contactsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode hubspot response: %w", err)
	}

	page := &models.ContactPage{Records: make([]models.RemoteContact, 0, len(decoded.Results))}
	for _, r := range decoded.Results {
		page.Records = append(page.Records, toRemoteContact(r))
	}
	if decoded.Paging != nil && decoded.Paging.Next != nil {
		page.NextPageToken = decoded.Paging.Next.After
	}

	return page, nil
}

func toRemoteContact(r contactResult) models.RemoteContact {
	props := make(map[string]string, len(r.Properties))
	for k, v := range r.Properties {
		if v == nil {
			props[k] = ""
			continue
		}
		props[k] = *v
	}

	return models.RemoteContact{
		ID:         r.ID,
		Properties: props,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Archived:   r.Archived,
	}
}
