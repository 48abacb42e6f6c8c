// Package httprequest provides the HTTP operator for workflow steps that call
// external services.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/batutahq/batuta/pkg/protocol"
)

const defaultTimeoutSeconds = 30

var (
	// ErrURLRequired is returned when the call input carries no url.
	ErrURLRequired = errors.New("http operator requires a 'url' input")
	// ErrServerError is returned for 5xx responses so step retry policies can
	// take another attempt.
	ErrServerError = errors.New("server error during HTTP request")
)

// Operator performs HTTP requests. Methods map to HTTP verbs plus a generic
// "request" that reads the verb from the input.
type Operator struct {
	client *http.Client
	logger *slog.Logger
}

func NewOperator(logger *slog.Logger) *Operator {
	return &Operator{
		client: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger: logger.With("module", "http_operator"),
	}
}

func (o *Operator) ID() string {
	return "http"
}

func (o *Operator) Method(name string) (protocol.OperatorCall, bool) {
	switch name {
	case "get":
		return o.verb(http.MethodGet), true
	case "post":
		return o.verb(http.MethodPost), true
	case "put":
		return o.verb(http.MethodPut), true
	case "delete":
		return o.verb(http.MethodDelete), true
	case "request":
		return o.request, true
	default:
		return nil, false
	}
}

func (o *Operator) verb(method string) protocol.OperatorCall {
	return func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return o.do(ctx, method, input)
	}
}

func (o *Operator) request(ctx context.Context, input map[string]any) (map[string]any, error) {
	method, _ := input["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	return o.do(ctx, strings.ToUpper(method), input)
}

func (o *Operator) do(ctx context.Context, method string, input map[string]any) (map[string]any, error) {
	url, _ := input["url"].(string)
	if url == "" {
		return nil, ErrURLRequired
	}

	var body io.Reader

	switch payload := input["body"].(type) {
	case nil:
	case string:
		body = strings.NewReader(payload)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		body = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if strVal, ok := value.(string); ok {
				req.Header.Set(key, strVal)
			}
		}
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	o.logger.InfoContext(ctx, "Executing HTTP request", "method", method, "url", url)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			o.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	return o.processResponse(resp)
}

func (o *Operator) processResponse(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        decoded,
		"headers":     flattenHeaders(resp.Header),
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return result, fmt.Errorf("status %d: %w", resp.StatusCode, ErrServerError)
	}

	return result, nil
}

func flattenHeaders(header http.Header) map[string]any {
	flat := make(map[string]any, len(header))
	for key := range header {
		flat[key] = header.Get(key)
	}

	return flat
}
