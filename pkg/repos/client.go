package repos

import (
	"context"
	"io"
	stdlog "log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "blrs-cli (+https://github.com/zeptofine/blrs-cli)"

// newRetryClient builds the shared HTTP client. Retries cover transient
// transport errors only; a fetch that keeps failing is surfaced to the
// caller, never retried across invocations.
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = stdlog.New(io.Discard, "", 0)
	c.RetryMax = 3
	c.HTTPClient.Timeout = 60 * time.Second
	return c
}

// getBody performs a GET and returns the response body. Non-2xx statuses
// become FetchErrors carrying the status code.
func getBody(ctx context.Context, client *retryablehttp.Client, repo RepoConfig, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Repo: repo.Name(), URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Repo: repo.Name(), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Repo: repo.Name(), URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Repo: repo.Name(), URL: url, Err: err}
	}
	return body, nil
}
