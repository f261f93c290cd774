package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/f3peakcity/f3-bot/pkg/logger"
)

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// submitAll posts payloads with a pool of workers and fills the counters in
// stats.
func submitAll(ctx context.Context, cfg *Config, payloads []Backblast, stats *Stats) {
	log := logger.Get().Named("seed")
	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/backblasts"

	var accepted, duplicate, failed atomic.Int64
	jobs := make(chan Backblast, cfg.Workers*2)
	var wg sync.WaitGroup
	for range max(cfg.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				switch submitOne(ctx, client, url, b) {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	func() {
		defer close(jobs)
		for _, b := range payloads {
			select {
			case <-ctx.Done():
				return
			case jobs <- b:
			}
		}
	}()
	wg.Wait()

	stats.Accepted = int(accepted.Load())
	stats.Duplicates = int(duplicate.Load())
	stats.Failed = int(failed.Load())
	stats.Submitted = stats.Accepted + stats.Duplicates + stats.Failed
	log.Info(ctx, "submission finished",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed))
}

func submitOne(ctx context.Context, client *HTTPClient, url string, b Backblast) outcome { //nolint:gocritic // hugeParam
	resp, err := client.Post(ctx, url, b)
	if err != nil {
		return outcomeFailed
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeFailed
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return outcomeDuplicate
		}
		return outcomeFailed
	default:
		return outcomeFailed
	}
}
