package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"DrawdownSentinel/internal/model"
)

// ErrNoData is returned when a provider answers without any usable bars.
var ErrNoData = errors.New("no price data returned")

// APIError is an error answer from a provider. Message is the provider's own
// text and may be empty.
type APIError struct {
	Provider string
	Message  string
}

func (e *APIError) Error() string {
	return e.Provider + " api error: " + e.Message
}

// Fetcher defines the interface for fetching daily price bars.
// Returned bars may arrive in any order; the analytics layer sorts them.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceBar, error)
	Name() string
}

// getJSON issues a GET and decodes a 200 response into dest. Error messages
// are prefixed with the provider name.
func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, header http.Header, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s fetch: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s read body: %w", provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d, body: %s", provider, resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%s decode: %w", provider, err)
	}
	return nil
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
