package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// doGetJSON performs an authorized GET and unmarshals a 200 response into T.
func doGetJSON[T any](ctx context.Context, c *Client, pathSegments ...string) (*T, error) {
	endpoint := strings.Join(pathSegments, "/")
	url := c.resolveURL(pathSegments...)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL built from the validated base URL
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("could not read response body: %w", err)}
	}

	c.captureResponse(endpoint, resp.StatusCode, body)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &Error{Kind: KindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("could not unmarshal response: %w", err)}
	}

	return &result, nil
}

// postEnvelope sends one authorized JSON POST and decodes the success/error
// envelope regardless of status; the backend reports rejections as 400 with
// a JSON body. A body that is not an envelope becomes an Error.
func (c *Client) postEnvelope(ctx context.Context, endpoint string, requestBody any) (*response, int, error) {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, 0, fmt.Errorf("could not marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL(endpoint), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("could not create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL built from the validated base URL
	if err != nil {
		return nil, 0, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("could not read response body: %w", err)}
	}

	c.captureResponse(endpoint, resp.StatusCode, body)

	var env response
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		return nil, resp.StatusCode, statusError(resp.StatusCode, body)
	}

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Bool("success", *env.Success).
		Msg("backend response")

	return &env, resp.StatusCode, nil
}

// statusError builds an Error for a response without a usable JSON body,
// preferring the backend's own "error" field when present.
func statusError(status int, body []byte) *Error {
	var env response
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return &Error{Kind: kindFor(env.Code, status), Code: env.Code, Message: env.Error, Status: status}
	}

	return &Error{
		Kind:   kindFor("", status),
		Status: status,
		Err:    fmt.Errorf("request failed with status %d: %s", status, truncate(body)),
	}
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
