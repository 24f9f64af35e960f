// Package transport is the client side of the ListenLink calls API: invitation
// and chat requests over HTTP JSON, and the invitation push stream.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listenlink/internal/calls"
)

var (
	ErrUnauthorized = errors.New("transport: unauthorized")
	ErrForbidden    = errors.New("transport: forbidden")
	ErrNotFound     = errors.New("transport: not found")
	ErrConflict     = errors.New("transport: conflict")
	ErrRateLimited  = errors.New("transport: rate limited")
)

const maxResponseBytes = 1 << 20

// envelope is the API response wrapper: { "data": ..., "error": ... }.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// APIError carries a non-2xx response that has no sentinel mapping.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transport: api returned status %d", e.Status)
	}
	return fmt.Sprintf("transport: api error (status %d): %s", e.Status, e.Message)
}

// Client talks to the calls API on behalf of one authenticated user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates an API client. baseURL is e.g. "https://api.listenlink.app".
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Authenticated reports whether a bearer token is configured.
func (c *Client) Authenticated() bool { return c.token != "" }

type createInvitationRequest struct {
	ReceiverID int64          `json:"receiver_id"`
	CallType   calls.CallType `json:"call_type"`
}

type updateInvitationRequest struct {
	Status  calls.Status `json:"status"`
	EndedAt *int64       `json:"ended_at,omitempty"`
}

type sendMessageRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Content     string `json:"content"`
}

// Message is a chat message as returned by the API.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	Content     string    `json:"content"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Client) CreateInvitation(ctx context.Context, receiverID int64, callType calls.CallType) (calls.Invitation, error) {
	var inv calls.Invitation
	err := c.do(ctx, http.MethodPost, "/v1/calls/invitations", createInvitationRequest{ReceiverID: receiverID, CallType: callType}, &inv)
	return inv, err
}

// UpdateInvitation sets an invitation's status. endedAt is Unix seconds.
func (c *Client) UpdateInvitation(ctx context.Context, id int64, status calls.Status, endedAt *int64) (calls.Invitation, error) {
	var inv calls.Invitation
	path := "/v1/calls/invitations/" + strconv.FormatInt(id, 10)
	err := c.do(ctx, http.MethodPatch, path, updateInvitationRequest{Status: status, EndedAt: endedAt}, &inv)
	return inv, err
}

// PendingInvitations lists invitations addressed to the current user, newest first.
func (c *Client) PendingInvitations(ctx context.Context) ([]calls.Invitation, error) {
	var out []calls.Invitation
	err := c.do(ctx, http.MethodGet, "/v1/calls/invitations/pending", nil, &out)
	return out, err
}

func (c *Client) GetInvitation(ctx context.Context, id int64) (calls.Invitation, error) {
	var inv calls.Invitation
	err := c.do(ctx, http.MethodGet, "/v1/calls/invitations/"+strconv.FormatInt(id, 10), nil, &inv)
	return inv, err
}

func (c *Client) SendMessage(ctx context.Context, recipientID int64, content string) error {
	return c.do(ctx, http.MethodPost, "/v1/chat/messages", sendMessageRequest{RecipientID: recipientID, Content: content}, nil)
}

// Thread returns the chat history with another user, oldest first.
func (c *Client) Thread(ctx context.Context, withUserID int64) ([]Message, error) {
	var out []Message
	err := c.do(ctx, http.MethodGet, "/v1/chat/threads/"+strconv.FormatInt(withUserID, 10), nil, &out)
	return out, err
}

// User looks up a user's display record, including presence.
func (c *Client) User(ctx context.Context, id int64) (calls.UserRef, error) {
	var u calls.UserRef
	err := c.do(ctx, http.MethodGet, "/v1/users/"+strconv.FormatInt(id, 10), nil, &u)
	return u, err
}

// History is the caller's call history summary.
type History struct {
	UserID               int64              `json:"user_id"`
	CompletedCalls       int                `json:"completed_calls"`
	MissedCalls          int                `json:"missed_calls"`
	RejectedCalls        int                `json:"rejected_calls"`
	TotalDurationSeconds int                `json:"total_duration_seconds"`
	Recent               []calls.Invitation `json:"recent"`
}

func (c *Client) History(ctx context.Context) (History, error) {
	var h History
	err := c.do(ctx, http.MethodGet, "/v1/calls/history", nil, &h)
	return h, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("transport: marshalling request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("transport: creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("transport: reading response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if decodeErr == nil {
			msg = env.Error
		}
		slog.Debug("api request failed", "method", method, "path", path, "status", resp.StatusCode, "error", msg)
		return statusError(resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("transport: decoding response: %w", decodeErr)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("transport: decoding response data: %w", err)
	}
	return nil
}

func statusError(status int, msg string) error {
	var sentinel error
	switch status {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusConflict:
		sentinel = ErrConflict
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		return &APIError{Status: status, Message: msg}
	}
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
