// services/socialdata_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"engagement-rewards-system/utils"
)

// FollowVerifier answers whether one external account follows another.
type FollowVerifier interface {
	IsFollowing(ctx context.Context, actorID, targetID string) (bool, error)
}

// HandleResolver turns a normalized handle into a canonical external id.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// SocialDataClient talks to the SocialData API and implements both oracles.
type SocialDataClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewSocialDataClient(baseURL, apiKey string, timeout time.Duration) *SocialDataClient {
	return &SocialDataClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  utils.NewHTTPClient(timeout),
	}
}

type followingResponse struct {
	Status      string `json:"status"`
	IsFollowing bool   `json:"is_following"`
	Message     string `json:"message"`
}

type userResponse struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

// IsFollowing calls GET /twitter/user/{actor}/following/{target}.
func (c *SocialDataClient) IsFollowing(ctx context.Context, actorID, targetID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/twitter/user/%s/following/%s", c.BaseURL, url.PathEscape(actorID), url.PathEscape(targetID))

	var out followingResponse
	status, err := c.getJSON(ctx, endpoint, &out)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK || out.Status != "success" {
		return false, fmt.Errorf("socialdata following check returned %d (%s): %s", status, out.Status, out.Message)
	}
	return out.IsFollowing, nil
}

// ResolveHandle returns bare numeric ids unchanged and looks "@name" handles
// up via GET /twitter/user/{screen_name}, all-digit names included.
func (c *SocialDataClient) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if IsExternalID(handle) {
		return handle, nil
	}
	name := ScreenName(handle)
	endpoint := fmt.Sprintf("%s/twitter/user/%s", c.BaseURL, url.PathEscape(name))

	var out userResponse
	status, err := c.getJSON(ctx, endpoint, &out)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrHandleNotFound
	}
	if status != http.StatusOK || out.IDStr == "" {
		return "", fmt.Errorf("socialdata user lookup for %q returned %d", name, status)
	}
	return out.IDStr, nil
}

func (c *SocialDataClient) getJSON(ctx context.Context, endpoint string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("socialdata request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read socialdata response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ [SOCIALDATA] %s returned %d: %.200s", req.URL.Path, resp.StatusCode, string(body))
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode socialdata response: %w", err)
	}
	return resp.StatusCode, nil
}
