package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 4 << 20
)

// HttpClient talks JSON to another roombook service.
type HttpClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type HttpOption func(*HttpClient)

func WithTimeout(timeout time.Duration) HttpOption {
	return func(c *HttpClient) {
		c.HTTPClient.Timeout = timeout
	}
}

// WithTracing records every outbound call as an X-Ray subsegment of the
// inbound request.
func WithTracing() HttpOption {
	return func(c *HttpClient) {
		c.HTTPClient = xray.Client(c.HTTPClient)
	}
}

func NewHttpClient(baseURL string, opts ...HttpOption) *HttpClient {
	c := &HttpClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Response struct {
	*http.Response
	Body []byte
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

func (c *HttpClient) GET(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{Response: resp, Body: body}, nil
}

// GetErrorMessage extracts the message of an error body written by pkg/http.
func GetErrorMessage(resp *Response) string {
	var errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil || (errResp.Error == "" && errResp.Code == "") {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	if errResp.Error != "" {
		return errResp.Error
	}
	return errResp.Code
}
