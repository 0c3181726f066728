package jisilu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cheerfulman/arbitrage-fund/internal/fund"
	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/httputil"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Client fetches the LOF and QDII fund listings from jisilu.cn. All
// jisilu traffic goes through this client; a local limiter keeps the
// request rate polite regardless of how often the pipeline fires.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.JisiluConfig
	limiter    *rate.Limiter
}

// NewClient creates a new jisilu client.
func NewClient(cfg config.JisiluConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	rl := cfg.RateLimit
	if rl <= 0 {
		rl = 2
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(rl), 1),
	}
}

// FetchLOF fetches the LOF index fund listing.
func (c *Client) FetchLOF(ctx context.Context) (*fund.RawPayload, error) {
	return c.fetchList(ctx, c.cfg.LOFPath, "/data/lof/")
}

// FetchQDII fetches the QDII fund listing.
func (c *Client) FetchQDII(ctx context.Context) (*fund.RawPayload, error) {
	return c.fetchList(ctx, c.cfg.QDIIPath, "/data/qdii/")
}

// FetchAll fetches both listings and merges them into one payload. A
// single source failing is tolerated (logged, the other side survives);
// the error is non-nil only when no source produced data.
func (c *Client) FetchAll(ctx context.Context) (*fund.RawPayload, error) {
	lof, err := c.FetchLOF(ctx)
	if err != nil {
		c.logger.WithError(err).Error("LOF fetch failed")
		lof = nil
	}

	qdii, err := c.FetchQDII(ctx)
	if err != nil {
		c.logger.WithError(err).Error("QDII fetch failed")
		qdii = nil
	}

	merged := fund.Merge(lof, qdii)
	if merged == nil {
		return nil, fmt.Errorf("all fund sources failed")
	}
	return merged, nil
}

// fetchList performs one listing request and decodes the payload.
func (c *Client) fetchList(ctx context.Context, path, refererPath string) (*fund.RawPayload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	// The ___jsl cache-buster is sent unescaped, as the site expects.
	fullURL := fmt.Sprintf("%s%s?___jsl=LST___t=%d&rp=25&page=1",
		c.cfg.BaseURL, path, time.Now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.cfg.BaseURL+refererPath)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	var payload fund.RawPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"path":  path,
		"bytes": len(body),
	}).Debug("Fetched fund listing")

	return &payload, nil
}
