package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/pkg/errors"
)

// Client talks to the AfterShip tracking API (v4 wire format).
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.aftership.com/v4"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type envelope struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Data struct {
		Tracking *aftership.Tracking `json:"tracking"`
	} `json:"data"`
}

func (c *Client) CreateTracking(ctx context.Context, nt aftership.NewTracking) (*aftership.Tracking, error) {
	body, err := json.Marshal(struct {
		Tracking aftership.NewTracking `json:"tracking"`
	}{Tracking: nt})
	if err != nil {
		return nil, errors.Wrap(err, "marshal new tracking")
	}
	return c.do(ctx, http.MethodPost, "/trackings", bytes.NewReader(body))
}

func (c *Client) GetTracking(ctx context.Context, slug, trackingNumber string) (*aftership.Tracking, error) {
	path := fmt.Sprintf("/trackings/%s/%s", url.PathEscape(slug), url.PathEscape(trackingNumber))
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*aftership.Tracking, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("aftership-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	// AfterShip reports the real outcome in meta.code (2xx on success,
	// API-specific codes like 4004/429 otherwise).
	if env.Meta.Code/100 != 2 {
		code := env.Meta.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &aftership.APIError{Code: code, Message: env.Meta.Message}
	}
	if env.Data.Tracking == nil {
		return nil, errors.New("response has no tracking")
	}
	return env.Data.Tracking, nil
}
