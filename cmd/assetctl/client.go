package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type assetClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *assetClient {
	return &assetClient{
		baseURL: serverURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *assetClient) do(method, path string, body any, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user := resolvedUser(); user != "" {
		req.Header.Set("X-Remote-User", user)
		req.Header.Set("X-Remote-Role", resolvedRole())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(raw))
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
	}
	return nil
}

// getJSON performs a GET request and decodes the response.
func (c *assetClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *assetClient) postJSON(path string, body any, v any) error {
	return c.do(http.MethodPost, path, body, v)
}
