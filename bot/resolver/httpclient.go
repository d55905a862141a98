package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newHTTPClient(timeout time.Duration) *retryablehttp.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return client
}

func fetch(ctx context.Context, client *retryablehttp.Client, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", browserUA)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func getJSON(ctx context.Context, client *retryablehttp.Client, url string, headers map[string]string, out any) (int, error) {
	raw, status, err := fetch(ctx, client, http.MethodGet, url, headers, nil)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK {
		return status, fmt.Errorf("unexpected status %d: %s", status, truncate(string(raw), 100))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return status, fmt.Errorf("decode response: %w", err)
		}
	}
	return status, nil
}

func trimInput(s string) string {
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstYear(s string) int {
	for i := 0; i+4 <= len(s); i++ {
		if (strings.HasPrefix(s[i:], "19") || strings.HasPrefix(s[i:], "20")) && isDigits(s[i:i+4]) {
			var year int
			fmt.Sscanf(s[i:i+4], "%d", &year)
			return year
		}
	}
	return 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
