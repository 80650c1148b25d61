package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hperssn/focusflow/internal/domain"
)

// Client talks to the FocusFlow HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, ident domain.Identity) (*domain.User, error) {
	var u domain.User
	err := c.do(ctx, http.MethodPost, "/api/auth/user", map[string]string{
		"auth0Id": ident.Subject,
		"email":   ident.Email,
		"name":    ident.Name,
		"picture": ident.Picture,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) StartSession(ctx context.Context, userID string) (*domain.Session, error) {
	var s domain.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions/create", map[string]string{"userId": userID}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) EndSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/end", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Track(ctx context.Context, r Report) (Result, error) {
	var res struct {
		FocusScore float64      `json:"focusScore"`
		FocusLabel domain.Label `json:"focusLabel"`
		AIMessage  *string      `json:"aiMessage"`
		VoiceURL   *string      `json:"voiceUrl"`
	}
	err := c.do(ctx, http.MethodPost, "/api/focus/track", map[string]any{
		"userId":      r.UserID,
		"sessionId":   r.SessionID,
		"typingSpeed": r.Metrics.TypingSpeed,
		"idleTime":    r.Metrics.IdleTime,
		"tabSwitches": r.Metrics.TabSwitches,
	}, &res)
	if err != nil {
		return Result{}, err
	}

	out := Result{FocusScore: res.FocusScore, FocusLabel: res.FocusLabel}
	if res.AIMessage != nil {
		out.AIMessage = *res.AIMessage
	}
	if res.VoiceURL != nil {
		out.VoiceURL = *res.VoiceURL
	}
	return out, nil
}
