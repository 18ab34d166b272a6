// Package whatsapp is a client for the WhatsApp bridge sidecar.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts messages to the sidecar's /send and /send-media endpoints.
type Client struct {
	baseURL      string
	textTimeout  time.Duration
	mediaTimeout time.Duration
	httpClient   *http.Client
}

func NewClient(baseURL string, textTimeout, mediaTimeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		textTimeout:  textTimeout,
		mediaTimeout: mediaTimeout,
		httpClient:   &http.Client{},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendMediaRequest struct {
	To      string   `json:"to"`
	Files   []string `json:"files"`
	Caption string   `json:"caption"`
}

// SendText delivers a plain message to number.
func (c *Client) SendText(ctx context.Context, number, message string) error {
	return c.post(ctx, "/send", c.textTimeout, sendRequest{To: number, Message: message})
}

// SendMedia asks the sidecar to upload local files; paths must be absolute.
func (c *Client) SendMedia(ctx context.Context, number string, files []string, caption string) error {
	return c.post(ctx, "/send-media", c.mediaTimeout, sendMediaRequest{To: number, Files: files, Caption: caption})
}

// Health reports whether the sidecar answers on /health.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// checkStatus accepts any 2xx and surfaces the sidecar's error field otherwise.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("sidecar error: status %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("sidecar error: status %d", resp.StatusCode)
}
