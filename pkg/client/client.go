package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/G9000/tauri-update-server/pkg/update"
)

type ErrorResponse struct {
	StatusCode int
	ErrorMsg   string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("unexpected status code: %d, error: %s", e.StatusCode, e.ErrorMsg)
}

type Client struct {
	serverURL  string
	httpClient *http.Client
}

func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		httpClient: &http.Client{
			Timeout: time.Minute,
			// the download endpoint answers with a redirect we want to read, not follow
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func getUpdateURL(platform, currentVersion string) string {
	return fmt.Sprintf("api/tauri-app/%s/%s", url.PathEscape(platform), url.PathEscape(currentVersion))
}

func getDownloadURL(platform string) string {
	return fmt.Sprintf("api/download/%s", url.PathEscape(platform))
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string) (*http.Response, error) {
	apiEndpoint, err := url.JoinPath(c.serverURL, endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, apiEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	return c.httpClient.Do(req)
}

func (c *Client) decodeError(resp *http.Response) error {
	errResp := ErrorResponse{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		errResp.ErrorMsg = http.StatusText(resp.StatusCode)
	}
	return &errResp
}

func (c *Client) decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// CheckForUpdate returns the latest release, or nil if currentVersion is up to date
// or the server has nothing to report.
func (c *Client) CheckForUpdate(ctx context.Context, platform, currentVersion string) (*update.Release, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, getUpdateURL(platform, currentVersion))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		_ = resp.Body.Close()
		return nil, nil
	}
	var rel update.Release
	err = c.decodeResponse(resp, &rel)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// GetDownloadURL returns the artifact URL of the latest release for platform.
func (c *Client) GetDownloadURL(ctx context.Context, platform string) (string, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, getDownloadURL(platform))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return "", c.decodeError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("redirect without location")
	}
	return location, nil
}
