// Package showapi is the REST client for show snapshots and viewer profiles.
// The engine treats every snapshot field as optional; validation happens at
// the adoption boundary, not here.
package showapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin REST client for the show API.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// GetShow fetches the full snapshot for one show.
func (c *Client) GetShow(ctx context.Context, showID string) (*ShowSnapshot, error) {
	body, err := c.get(ctx, "/show/"+showID)
	if err != nil {
		return nil, fmt.Errorf("fetch show %s: %w", showID, err)
	}

	var snap ShowSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode show snapshot: %w", err)
	}
	return &snap, nil
}

// GetUserProfile fetches the viewer profile used for giveaway eligibility.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	body, err := c.get(ctx, "/users/"+userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}

	var profile UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decode user profile: %w", err)
	}
	return &profile, nil
}
