package api

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/etnz/loandash"
)

// LoginResult is the answer to a successful login or signup.
type LoginResult struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

// CheckAuth validates token and returns the identity it belongs to.
//
// An empty token fails with loandash.ErrUnauthorized without any request, and
// so does every non-2xx response.
func (c *Client) CheckAuth(ctx context.Context, token string) (loandash.Identity, error) {
	const op = "check_auth"
	if token == "" {
		return loandash.Identity{}, fmt.Errorf("%s: no token: %w", op, loandash.ErrUnauthorized)
	}
	start := time.Now()
	resp, err := c.do(ctx, request{operation: op, method: fasthttp.MethodGet, path: "/api/auth/me", token: token})
	if err != nil {
		return loandash.Identity{}, err
	}
	if !resp.ok() {
		c.observe(op, outcomeUnauthorized, start)
		return loandash.Identity{}, fmt.Errorf("%s: status %d: %w", op, resp.status, loandash.ErrUnauthorized)
	}
	var id loandash.Identity
	if err := json.Unmarshal(resp.body, &id); err != nil {
		c.observe(op, outcomeDecode, start)
		return loandash.Identity{}, &loandash.ServerError{Operation: op, Status: resp.status, Err: err}
	}
	c.observe(op, outcomeOK, start)
	return id, nil
}

// Login exchanges credentials for a token. Rejected credentials are a
// *loandash.ValidationError carrying the backend's reason.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	return c.credentials(ctx, "login", "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, "Login failed")
}

// Signup creates an account and returns its first token. phone is optional.
func (c *Client) Signup(ctx context.Context, email, password, confirm, phone string) (LoginResult, error) {
	body := map[string]any{
		"email":            email,
		"password":         password,
		"confirm_password": confirm,
	}
	if phone != "" {
		body["phone"] = phone
	}
	return c.credentials(ctx, "signup", "/api/auth/signup", body, "Signup failed")
}

func (c *Client) credentials(ctx context.Context, op, path string, payload map[string]any, fallback string) (LoginResult, error) {
	start := time.Now()
	body, err := json.Marshal(payload)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: cannot encode request: %w", op, err)
	}
	resp, err := c.do(ctx, request{
		operation:   op,
		method:      fasthttp.MethodPost,
		path:        path,
		contentType: "application/json",
		body:        body,
	})
	if err != nil {
		return LoginResult{}, err
	}
	switch {
	case resp.status >= 500:
		return LoginResult{}, c.classify(op, resp, start)
	case !resp.ok():
		c.observe(op, outcomeRejected, start)
		msg := errorMessage(resp.body)
		if msg == "" {
			msg = fallback
		}
		return LoginResult{}, &loandash.ValidationError{Status: resp.status, Message: msg}
	}
	var res LoginResult
	if err := json.Unmarshal(resp.body, &res); err != nil || res.Token == "" {
		c.observe(op, outcomeDecode, start)
		if err == nil {
			err = fmt.Errorf("no token in response")
		}
		return LoginResult{}, &loandash.ServerError{Operation: op, Status: resp.status, Err: err}
	}
	c.observe(op, outcomeOK, start)
	return res, nil
}

// Logout tells the backend the token is no longer used. Tokens are stateless
// on the backend, clearing the local session is what actually logs out.
func (c *Client) Logout(ctx context.Context, token string) error {
	const op = "logout"
	if token == "" {
		return nil
	}
	start := time.Now()
	resp, err := c.do(ctx, request{operation: op, method: fasthttp.MethodPost, path: "/api/auth/logout", token: token})
	if err != nil {
		return err
	}
	if err := c.classify(op, resp, start); err != nil {
		return err
	}
	c.observe(op, outcomeOK, start)
	return nil
}
