// Package client is an HTTP client for the churn prediction API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"churn-serving/internal/ml"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Version    string
}

func (e *APIError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("churn api: %d %s (version %s)", e.StatusCode, e.Message, e.Version)
	}
	return fmt.Sprintf("churn api: %d %s", e.StatusCode, e.Message)
}

// Is matches ml.ErrModelNotFound for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ml.ErrModelNotFound && e.StatusCode == http.StatusNotFound
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Predict calls POST /predict.
func (c *Client) Predict(ctx context.Context, req ml.PredictionRequest) (*ml.PredictionResponse, error) {
	resp := &ml.PredictionResponse{}
	if err := c.do(ctx, http.MethodPost, "/predict", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Models calls GET /models.
func (c *Client) Models(ctx context.Context) (defaultVersion string, versions []string, err error) {
	var out struct {
		DefaultVersion string   `json:"default_version"`
		Versions       []string `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/models", nil, &out); err != nil {
		return "", nil, err
	}
	return out.DefaultVersion, out.Versions, nil
}

// Model calls GET /models/{version}.
func (c *Client) Model(ctx context.Context, version string) (*ml.ModelInfo, error) {
	info := &ml.ModelInfo{}
	if err := c.do(ctx, http.MethodGet, "/models/"+version, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	apiErr := &ml.ErrorResponse{}
	req := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg, Version: apiErr.Version}
	}
	return nil
}
