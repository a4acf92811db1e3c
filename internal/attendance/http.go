package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// maxBodySize caps response bodies read from the API.
const maxBodySize = 4 << 20

// doGetJSON performs a GET request and unmarshals the JSON response.
func doGetJSON[T any](ctx context.Context, c *Client, segments ...string) (*T, error) {
	return doRequestJSON[T](ctx, c, http.MethodGet, segments, nil, http.StatusOK)
}

// doPostJSON performs a POST request with a JSON body and unmarshals the JSON
// response.
func doPostJSON[T any](ctx context.Context, c *Client, requestBody any, segments ...string) (*T, error) {
	return doRequestJSON[T](ctx, c, http.MethodPost, segments, requestBody, http.StatusOK, http.StatusCreated)
}

// doRequestJSON performs an HTTP request with a JSON body and response. Any
// status outside expectedStatuses is returned as *APIError.
func doRequestJSON[T any](ctx context.Context, c *Client, method string, segments []string, requestBody any, expectedStatuses ...int) (*T, error) {
	endpoint := c.resolveURL(segments...)

	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL built from the validated API root
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	c.captureResponse(strings.Join(segments, "/"), body)

	if !slices.Contains(expectedStatuses, resp.StatusCode) {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	return &result, nil
}
