package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Fetcher retrieves the current role state for a subject from a remote
// endpoint. Consumed only when the token and session paths are unavailable.
type Fetcher interface {
	FetchRoles(ctx context.Context, subjectID string) (Detection, error)
}

// HTTPFetcher fetches a Detection-shaped payload over HTTP. Requests apply a
// bounded timeout and pass through a circuit breaker so a failing endpoint
// cannot hang or hammer the caller.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Detection]
}

// NewHTTPFetcher creates a fetcher for the given base URL. The endpoint is
// expected to serve GET {baseURL}/subjects/{id}/roles returning a Detection
// JSON payload.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[Detection](gobreaker.Settings{
			Name:    "role-endpoint",
			Timeout: 30 * time.Second,
		}),
	}
}

// FetchRoles fetches the subject's current detection snapshot.
// Returns ErrRoleFetchFailed on any transport or non-success response.
func (f *HTTPFetcher) FetchRoles(ctx context.Context, subjectID string) (Detection, error) {
	detection, err := f.breaker.Execute(func() (Detection, error) {
		return f.fetch(ctx, subjectID)
	})
	if err != nil {
		return Detection{}, errors.Join(ErrRoleFetchFailed, err)
	}
	return detection, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, subjectID string) (Detection, error) {
	endpoint := fmt.Sprintf("%s/subjects/%s/roles", f.baseURL, url.PathEscape(subjectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Detection{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Detection{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Detection{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var detection Detection
	if err := json.NewDecoder(resp.Body).Decode(&detection); err != nil {
		return Detection{}, err
	}
	return detection, nil
}
