package feature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Fetcher retrieves the current flag catalog from a remote endpoint. The
// response is a superset-mergeable catalog: definitions are upserted by key
// into the local catalog rather than replacing it.
type Fetcher interface {
	FetchFlags(ctx context.Context) ([]Definition, error)
}

// HTTPFetcher fetches flag definitions over HTTP with a bounded timeout and
// a circuit breaker.
type HTTPFetcher struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[]Definition]
}

// NewHTTPFetcher creates a fetcher for the given endpoint, which is expected
// to serve a JSON array of flag definitions.
func NewHTTPFetcher(endpoint string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[[]Definition](gobreaker.Settings{
			Name:    "flag-endpoint",
			Timeout: 30 * time.Second,
		}),
	}
}

// FetchFlags fetches the remote catalog.
// Returns ErrFlagFetchFailed on any transport or non-success response.
func (f *HTTPFetcher) FetchFlags(ctx context.Context) ([]Definition, error) {
	definitions, err := f.breaker.Execute(func() ([]Definition, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return nil, errors.Join(ErrFlagFetchFailed, err)
	}
	return definitions, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context) ([]Definition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var definitions []Definition
	if err := json.NewDecoder(resp.Body).Decode(&definitions); err != nil {
		return nil, err
	}
	return definitions, nil
}
