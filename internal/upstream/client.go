// Package upstream is a typed client for the thread-oriented backend API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GuestHeader carries the trusted anonymous identity on every upstream call.
const GuestHeader = "x-guest-id"

// Client talks to the backend that owns threads and messages.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. The underlying
// http.Client carries no timeout: message responses are long-lived streams
// and cancellation is governed by the per-call context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// ThreadInfo is one entry of the thread listing.
type ThreadInfo struct {
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// StoredMessage is a message as the backend persists it. Type is "human"
// for user messages; anything else is model output.
type StoredMessage struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type createThreadRequest struct {
	Query any `json:"query"`
}

type createThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

type threadsResponse struct {
	Threads []ThreadInfo `json:"threads"`
}

type messagesResponse struct {
	Messages []StoredMessage `json:"messages"`
}

type renameThreadRequest struct {
	Title string `json:"title"`
}

// CreateThread creates a new thread seeded with the user's query and
// returns its identifier. The backend mints the id; this client never
// synthesizes one.
func (c *Client) CreateThread(ctx context.Context, guestID string, query any) (string, error) {
	resp, err := c.do(ctx, guestID, http.MethodPost, "/threads", createThreadRequest{Query: query})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}
	var out createThreadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode create thread response: %w", err)
	}
	if out.ThreadID == "" {
		return "", fmt.Errorf("create thread response missing thread_id")
	}
	return out.ThreadID, nil
}

// ListThreads returns the guest's threads, newest first.
func (c *Client) ListThreads(ctx context.Context, guestID string) ([]ThreadInfo, error) {
	resp, err := c.do(ctx, guestID, http.MethodGet, "/threads", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out threadsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode threads response: %w", err)
	}
	return out.Threads, nil
}

// DeleteThread removes a thread and its history upstream.
func (c *Client) DeleteThread(ctx context.Context, guestID, threadID string) error {
	resp, err := c.do(ctx, guestID, http.MethodDelete, "/threads/"+threadID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// RenameThread changes a thread's title.
func (c *Client) RenameThread(ctx context.Context, guestID, threadID, title string) error {
	resp, err := c.do(ctx, guestID, http.MethodPatch, "/threads/"+threadID, renameThreadRequest{Title: title})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// GetMessages returns the stored history of a thread.
func (c *Client) GetMessages(ctx context.Context, guestID, threadID string) ([]StoredMessage, error) {
	resp, err := c.do(ctx, guestID, http.MethodGet, "/threads/"+threadID+"/messages", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode messages response: %w", err)
	}
	return out.Messages, nil
}

// StreamMessage posts a message to a thread and returns the live response.
// On 200 the caller owns the body and must close it after piping the
// stream; any other status is drained into an error here.
func (c *Client) StreamMessage(ctx context.Context, guestID, threadID string, query any) (*http.Response, error) {
	resp, err := c.do(ctx, guestID, http.MethodPost, "/threads/"+threadID+"/messages", createThreadRequest{Query: query})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, guestID, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(GuestHeader, guestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("upstream error [%d]: %s", resp.StatusCode, msg)
}
