// Package catalog implements the HTTP client for the variable catalog
// service, which indexes the scientific data fields a user can plot. All
// methods are context-aware, respect the shared rate limiter, and retry on
// transient errors (429, 5xx).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmfenton/plotdesk/internal/model"
)

const (
	defaultBaseURL = "https://catalog.example.com/api/"
	maxRetries     = 4
)

// Client is the catalog HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// NewClient creates a Client with the given base URL and timeout.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, debug bool) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		debug:   debug,
	}
}

// ─── Variables ────────────────────────────────────────────────────────────────

// rawVariable is the catalog's wire shape for one data field.
type rawVariable struct {
	DataFieldID              string  `json:"dataFieldId"`
	DataFieldLongName        string  `json:"dataFieldLongName"`
	DataFieldShortName       string  `json:"dataFieldShortName"`
	DataProductTimeInterval  string  `json:"dataProductTimeInterval"`
	DataProductBeginDateTime string  `json:"dataProductBeginDateTime"`
	DataProductEndDateTime   string  `json:"dataProductEndDateTime"`
	DataProductWest          float64 `json:"dataProductWest"`
	DataProductSouth         float64 `json:"dataProductSouth"`
	DataProductEast          float64 `json:"dataProductEast"`
	DataProductNorth         float64 `json:"dataProductNorth"`
	DataFieldUnits           string  `json:"dataFieldUnits"`
}

func normalizeVariable(r rawVariable) model.Variable {
	return model.Variable{
		DataFieldID:              r.DataFieldID,
		LongName:                 r.DataFieldLongName,
		ShortName:                r.DataFieldShortName,
		TimeInterval:             r.DataProductTimeInterval,
		DataProductBeginDateTime: r.DataProductBeginDateTime,
		DataProductEndDateTime:   r.DataProductEndDateTime,
		West:                     r.DataProductWest,
		South:                    r.DataProductSouth,
		East:                     r.DataProductEast,
		North:                    r.DataProductNorth,
		Units:                    r.DataFieldUnits,
		FetchedAt:                time.Now(),
	}
}

// GetVariable fetches metadata for a single data field by id.
func (c *Client) GetVariable(ctx context.Context, dataFieldID string) (*model.Variable, error) {
	params := url.Values{}
	params.Set("dataFieldId", dataFieldID)

	var raw struct {
		Variables []rawVariable `json:"variables"`
	}
	if err := c.get(ctx, "variables", params, &raw); err != nil {
		return nil, fmt.Errorf("variable %s: %w", dataFieldID, err)
	}
	if len(raw.Variables) == 0 {
		return nil, fmt.Errorf("variable %s: not found", dataFieldID)
	}
	v := normalizeVariable(raw.Variables[0])
	return &v, nil
}

// SearchVariables queries by free text over names and ids.
func (c *Client) SearchVariables(ctx context.Context, query string, limit int) ([]model.Variable, error) {
	params := url.Values{}
	params.Set("search", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var raw struct {
		Variables []rawVariable `json:"variables"`
	}
	if err := c.get(ctx, "variables", params, &raw); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	out := make([]model.Variable, len(raw.Variables))
	for i, r := range raw.Variables {
		out[i] = normalizeVariable(r)
	}
	return out, nil
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// get performs a GET request to the catalog, handling rate limiting and
// retries.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	if c.debug {
		slog.Debug("catalog request", "url", reqURL)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))*500) * time.Millisecond
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "plotdesk/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}

		if c.debug {
			slog.Debug("catalog response", "status", resp.StatusCode, "bytes", len(body))
		}

		// Retry on server errors and rate limiting
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(body, &apiErr)
			if apiErr.Error != "" {
				return fmt.Errorf("API error: %s", apiErr.Error)
			}
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}
