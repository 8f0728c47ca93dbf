// Package tool provides ready-made durable task builders for common
// side effects.
package tool

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/duraflow-go/flow"
)

// HTTPRequest is the input of the HTTP task. Typed fields keep the
// request JSON-serializable, which is what makes the call replayable:
// the request is the task input, the response the recorded result.
type HTTPRequest struct {
	// Method defaults to GET.
	Method string `json:"method,omitempty"`

	// URL is the target (required).
	URL string `json:"url"`

	// Headers are added to the request.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the request body for POST/PUT/PATCH.
	Body string `json:"body,omitempty"`
}

// HTTPResponse is the recorded result of the HTTP task.
type HTTPResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// NewHTTPTask builds a durable HTTP task: live runs perform the
// request, replayed runs serve the recorded response. Chain the usual
// task options onto the result for retries and timeouts:
//
//	fetch := tool.NewHTTPTask("fetch_rates", nil).
//	    WithRetry(3, time.Second, 2.0).
//	    WithTimeout(30 * time.Second)
//
//	resp, err := fetch.Call(c, tool.HTTPRequest{URL: ratesURL})
//
// A nil client uses a default with a 30 second transport timeout.
func NewHTTPTask(name string, client *http.Client) *flow.Task[HTTPRequest, HTTPResponse] {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return flow.NewTask(name, func(c *flow.Ctx, in HTTPRequest) (HTTPResponse, error) {
		return doRequest(c, client, in)
	})
}

func doRequest(c *flow.Ctx, client *http.Client, in HTTPRequest) (HTTPResponse, error) {
	var zero HTTPResponse
	if in.URL == "" {
		return zero, fmt.Errorf("url is required")
	}
	method := strings.ToUpper(in.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if in.Body != "" {
		body = strings.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(c.Context(), method, in.URL, body)
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	for key, value := range in.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}
	return HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       string(respBody),
	}, nil
}
