// Package wordpress reads taxonomies, terms, content items and media from the
// WordPress REST API (wp-json/wp/v2). Custom fields are read from the "acf"
// object the ACF plugin adds to REST responses.
package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"firesync/internal/cms"
	"firesync/pkg/log"
)

const (
	apiPrefix       = "wp-json/"
	corePrefix      = "wp/v2/"
	defaultPerPage  = 100
	maxPerPage      = 100
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 5 * time.Minute
	defaultRetries  = 3

	cacheKeyTaxonomies = "taxonomies"
	cacheKeyTypes      = "types"
	cacheKeyNamespaces = "namespaces"

	totalPagesHeader = "X-WP-TotalPages"
)

type Options struct {
	BaseURL string
	// Username and ApplicationPassword enable basic auth and context=edit reads.
	Username            string
	ApplicationPassword string
	HTTPClient          *http.Client
	Timeout             time.Duration
	PerPage             int
	MaxRetries          uint
	RetryInterval       time.Duration
	CacheTTL            time.Duration
}

// Client implements cms.ContentSource, cms.MetadataAccessor,
// cms.TaxonomyAccessor and cms.CustomFields.
type Client struct {
	baseURL       string
	username      string
	password      string
	httpClient    *http.Client
	perPage       int
	maxRetries    uint
	retryInterval time.Duration
	cache         *cache.Cache
	logger        zerolog.Logger
}

var (
	_ cms.ContentSource    = (*Client)(nil)
	_ cms.MetadataAccessor = (*Client)(nil)
	_ cms.TaxonomyAccessor = (*Client)(nil)
	_ cms.CustomFields     = (*Client)(nil)
	_ cms.Refresher        = (*Client)(nil)
)

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("wordpress base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid wordpress base url %q: %w", base, err)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	perPage := opts.PerPage
	if perPage <= 0 || perPage > maxPerPage {
		perPage = defaultPerPage
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = defaultRetries
	}
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Client{
		baseURL:       base,
		username:      opts.Username,
		password:      opts.ApplicationPassword,
		httpClient:    httpClient,
		perPage:       perPage,
		maxRetries:    retries,
		retryInterval: interval,
		cache:         cache.New(ttl, 2*ttl),
		logger:        log.Logger.With().Str("component", "wordpress").Str("site", base).Logger(),
	}, nil
}

// Refresh drops cached taxonomy, type and namespace listings.
func (c *Client) Refresh() {
	c.cache.Flush()
}

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress %s: status %d (%s): %s", e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress %s: status %d: %s", e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == cms.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// get fetches one resource and decodes it into out with json.Number for
// numbers. 429 and 5xx answers and network errors are retried.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	logger := c.logger.With().Str("action", "get").Str("path", path).Logger()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	return backoff.Retry(ctx, func() (http.Header, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger.Debug().Err(err).Msg("Request failed")
			return nil, fmt.Errorf("wordpress %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := readAPIError(path, resp)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
					return nil, backoff.RetryAfter(seconds)
				}
				return nil, apiErr
			case resp.StatusCode >= 500:
				logger.Debug().Int("status", resp.StatusCode).Msg("Server error, retrying")
				return nil, apiErr
			default:
				return nil, backoff.Permanent(apiErr)
			}
		}

		decoder := json.NewDecoder(resp.Body)
		decoder.UseNumber()
		if err := decoder.Decode(out); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode wordpress %s: %w", path, err))
		}
		return resp.Header, nil
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries),
	)
}

func readAPIError(path string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Path: path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Code
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}

// getAll walks every page of a collection endpoint using X-WP-TotalPages.
func getAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(c.perPage))

	var all []T
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		var batch []T
		header, err := c.get(ctx, path, query, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		totalPages, err := strconv.Atoi(header.Get(totalPagesHeader))
		if err != nil || page >= totalPages || len(batch) == 0 {
			return all, nil
		}
	}
}

func (c *Client) editContext(query url.Values) url.Values {
	if c.username != "" {
		query.Set("context", "edit")
	}
	return query
}
