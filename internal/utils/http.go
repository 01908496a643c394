package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// HeaderOption is a single HTTP header to apply to an outbound request.
// Options are applied after the defaults, so they can override the
// Authorization header for providers with non-Bearer auth schemes.
type HeaderOption struct {
	Key   string
	Value string
}

// maxResponseBodySize is the maximum response body size (10 MB). Enforced via
// io.LimitReader to prevent unbounded memory allocation from rogue responses.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// CloseWithLog closes the given closer and logs a warning on failure.
// Used in defers where a close error must not override the primary error.
func CloseWithLog(closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// DoPostSync performs a synchronous HTTP POST request with a JSON body and
// decodes the JSON response into OutputStruct.
//
// Error handling strategy:
//   - Context errors (timeout, cancellation) are propagated immediately
//   - Non-2xx status codes return an error carrying the response body
//   - JSON decode errors include a response preview for debugging
//
// The response body is always closed before returning.
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*OutputStruct, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("non-2xx status %d: %s", res.StatusCode, TruncateStringDefault(string(respBody)))
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s", res.StatusCode, err, TruncateString(string(respBody), 500))
	}

	return &resStruct, nil
}

// DoPostStream performs an HTTP POST request and returns the raw response with
// its body left open for incremental reading. The caller is responsible for
// closing the response body when done. On error paths the body is read and
// closed before returning.
//
// This mirrors DoPostSync but does not consume the response body, enabling
// streaming consumption via [SSEScanner] or [LineScanner].
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	// For non-2xx responses, read the body and close it before returning the error.
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return nil, fmt.Errorf("non-2xx status %d (failed to read body: %v)", response.StatusCode, readErr)
		}
		return nil, fmt.Errorf("non-2xx status %d: %s", response.StatusCode, TruncateStringDefault(string(errorBody)))
	}

	return response, nil
}
