package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNotFound = errors.New("resource not found")

// StatusError is returned when an upstream service answers with a non success
// status.
type StatusError struct {
	Method string
	Url    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v request to %v returned status %d, content '%v'", e.Method, e.Url, e.Status, e.Body)
}

type BaseClient struct {
	http *resty.Client
}

func NewBaseClient(baseUrl string, timeout time.Duration) BaseClient {
	return BaseClient{
		http: resty.New().
			SetBaseURL(baseUrl).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// request forwards the caller's bearer token when there is one.
func (c *BaseClient) request(ctx context.Context, token string) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

func checkResponse(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}

	slog.Debug("service client", "method", res.Request.Method, "url", res.Request.URL, "status", res.StatusCode(), "duration", res.Time().String())

	if res.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%v request to %v: %w", res.Request.Method, res.Request.URL, ErrNotFound)
	}
	if res.IsError() {
		return &StatusError{Method: res.Request.Method, Url: res.Request.URL, Status: res.StatusCode(), Body: res.String()}
	}
	return nil
}
