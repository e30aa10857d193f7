package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jwlim/sectorpulse/pkg/config"
	"github.com/jwlim/sectorpulse/pkg/httputil"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// Client handles communication with the EastMoney quote endpoints
// SSOT: provider HTTP calls happen only in this package
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	quoteBase  string
	memberBase string
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// NewClient creates a new EastMoney client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		quoteBase:  cfg.Provider.QuoteBaseURL,
		memberBase: cfg.Provider.MemberBaseURL,
	}
}

// fetchBody fetches a URL and returns the response body as string
func (c *Client) fetchBody(ctx context.Context, base, path string, params url.Values) (string, error) {
	fullURL := fmt.Sprintf("%s%s", base, path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": userAgent,
		"Referer":    "https://quote.eastmoney.com/",
	})
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}
