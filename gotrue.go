package main

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

// authClient creates accounts on the managed auth service.
type authClient interface {
	SignUp(ctx context.Context, email, password string, data map[string]any) (userID string, err error)
}

// authError is a rejection reported by the auth service itself, as opposed to
// a transport failure.
type authError struct {
	Status  int
	Message string
}

func (e *authError) Error() string {
	return fmt.Sprintf("auth service rejected request (%d): %s", e.Status, e.Message)
}

// gotrueClient talks to the GoTrue REST API exposed under {url}/auth/v1.
type gotrueClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newGotrueClient(baseURL, apiKey string) *gotrueClient {
	return &gotrueClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *gotrueClient) SignUp(ctx context.Context, email, password string, data map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{
		"email":    email,
		"password": password,
		"data":     data,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/signup", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call auth service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read auth response: %w", err)
	}

	// The signup response is either the user itself or {user, session}
	// depending on whether email confirmation is enabled.
	var payload struct {
		ID   string `json:"id"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)

	if resp.StatusCode >= 300 {
		msg := firstNonEmpty(payload.Msg, payload.Message, payload.ErrorDescription, payload.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &authError{Status: resp.StatusCode, Message: msg}
	}

	id := payload.ID
	if payload.User != nil && payload.User.ID != "" {
		id = payload.User.ID
	}
	if id == "" {
		return "", fmt.Errorf("auth response carried no user id")
	}
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
