package profile

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client triggers balance/profile refreshes on the profile service. The
// response body is not consumed by the orchestrator.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

func NewClient(baseURL, credential string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		credential: credential,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Refresh() error {
	req, err := http.NewRequest("POST", c.baseURL+"/profile/refresh", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to refresh profile: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}
