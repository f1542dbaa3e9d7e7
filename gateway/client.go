// Package gateway is the stateless REST client for the backend: one function
// per capability, context on every call, no client-side state beyond the
// base URL and timeout. All calls are idempotent by contract except the two
// chat sends.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/alphachat/client/auth"
	"github.com/alphachat/client/bot"
	"github.com/alphachat/client/conversation"
	"github.com/alphachat/client/logger"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// doJSON performs a JSON request and decodes the response into out (which
// may be nil). Non-2xx responses become *APIError carrying the backend's
// {error} text when present.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	lg := logger.NewRequestLogger()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	lg.Debug("gateway request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	// Body may not be JSON at all; the status code alone is enough then.
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
}

// Login authenticates and returns the user record.
func (c *Client) Login(ctx context.Context, username, password string) (*auth.User, error) {
	req := map[string]string{"username": username, "password": password}
	var resp struct {
		Success bool       `json:"success"`
		User    *auth.User `json:"user"`
		Error   string     `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: resp.Error}
	}
	return resp.User, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	req := map[string]string{"username": username, "password": password}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{StatusCode: http.StatusBadRequest, Message: resp.Error}
	}
	return nil
}

// AlphaChat sends one message on the AlphaBot contract. An {error} payload
// is an application error even when the backend answers 2xx.
func (c *Client) AlphaChat(ctx context.Context, req AlphaChatRequest) (*AlphaChatResponse, error) {
	var resp AlphaChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/alphabot/chat", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

// DriveChat sends one message on the DriveBot contract. An {error} payload
// is an application error even when the backend answers 2xx.
func (c *Client) DriveChat(ctx context.Context, req DriveChatRequest) (*DriveChatResponse, error) {
	var resp DriveChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/drivebot/chat", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

// ListConversations fetches the user's full conversation list.
func (c *Client) ListConversations(ctx context.Context, userID int) ([]conversation.Conversation, error) {
	var resp struct {
		Conversations []conversation.Conversation `json:"conversations"`
	}
	path := fmt.Sprintf("/api/conversations?user_id=%d", userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// CreateConversation creates a remote conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, userID int, kind bot.Kind, title string) (string, error) {
	req := map[string]any{"user_id": userID, "bot_type": kind, "title": title}
	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations", req, &resp); err != nil {
		return "", err
	}
	return resp.ConversationID, nil
}

// RenameConversation updates a conversation title.
func (c *Client) RenameConversation(ctx context.Context, conversationID string, userID int, title string) error {
	req := map[string]any{"user_id": userID, "title": title}
	path := "/api/conversations/" + url.PathEscape(conversationID)
	return c.doJSON(ctx, http.MethodPut, path, req, nil)
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string, userID int) error {
	path := fmt.Sprintf("/api/conversations/%s?user_id=%d", url.PathEscape(conversationID), userID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ConversationMessages fetches the authoritative message history for a
// conversation.
func (c *Client) ConversationMessages(ctx context.Context, conversationID string, userID int) ([]bot.Message, error) {
	var resp struct {
		Messages []bot.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/conversations/%s/messages?user_id=%d", url.PathEscape(conversationID), userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// CacheStats returns backend cache observability data.
func (c *Client) CacheStats(ctx context.Context) (*CacheStats, error) {
	var resp CacheStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/cache/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCache drops the backend response cache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/cache/clear", nil, nil)
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/health", nil, nil)
}

// ExportAlpha streams the AlphaBot export for a session into w and returns
// the attachment filename.
func (c *Client) ExportAlpha(ctx context.Context, sessionID string, w io.Writer) (string, error) {
	return c.export(ctx, "/api/alphabot/export/"+url.PathEscape(sessionID), w)
}

// ExportDrive streams the DriveBot export for a conversation into w and
// returns the attachment filename.
func (c *Client) ExportDrive(ctx context.Context, conversationID string, w io.Writer) (string, error) {
	return c.export(ctx, "/api/drivebot/export/"+url.PathEscape(conversationID), w)
}

func (c *Client) export(ctx context.Context, path string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.apiError(resp)
	}

	filename := "export.bin"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			filename = params["filename"]
		}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	return filename, nil
}
