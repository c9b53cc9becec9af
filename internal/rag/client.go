// Package rag calls the retrieval side-service that answers in a requested
// speaking style (dialect, memes) from its own document index.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raphaelgruber/diarist/internal/metrics"
)

// Result is the side-service answer and the passages it drew from.
type Result struct {
	Response     string   `json:"response"`
	RelatedTexts []string `json:"related_texts"`
}

type queryRequest struct {
	Query string `json:"query"`
}

// Client posts queries to the retrieval service.
type Client struct {
	client  *resty.Client
	url     string
	metrics *metrics.Collector
}

// NewClient creates a client for the endpoint at url. mc may be nil.
func NewClient(url string, timeout time.Duration, mc *metrics.Collector) *Client {
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{client: c, url: url, metrics: mc}
}

// Query asks the service to answer query.
func (c *Client) Query(ctx context.Context, query string) (Result, error) {
	start := time.Now()
	defer func() { c.metrics.RecordTiming(metrics.OpRAGQuery, time.Since(start)) }()

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&queryRequest{Query: query}).
		Post(c.url)
	if err != nil {
		return Result{}, fmt.Errorf("rag request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Result{}, fmt.Errorf("rag status %d: %s", resp.StatusCode(), resp.String())
	}

	var res Result
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if res.RelatedTexts == nil {
		res.RelatedTexts = []string{}
	}
	return res, nil
}
