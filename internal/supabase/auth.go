package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// nullSession is the session value when the auth service issued none (e.g. email confirmation pending).
var nullSession = json.RawMessage("null")

// AuthResponse is the outcome of a signup or password sign-in. User is kept as decoded JSON so every field the
// auth service returns is passed through; Session is opaque.
type AuthResponse struct {
	User    map[string]any
	Session json.RawMessage
}

// UserID returns the id of the returned user, or "" if the service did not return one.
func (r *AuthResponse) UserID() string {
	if r == nil || r.User == nil {
		return ""
	}
	id, _ := r.User["id"].(string)
	return id
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates an auth user with email and password.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthResponse, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeAuthResponse(raw)
}

// SignInWithPassword exchanges email and password for a session (grant_type=password).
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials{Email: email, Password: password},
	}, &raw)
	if err != nil {
		return nil, err
	}
	resp, err := decodeAuthResponse(raw)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, errors.New("supabase: sign-in response carries no user")
	}
	return resp, nil
}

// decodeAuthResponse accepts either a session ({access_token, ..., user}) or a bare user object, which the
// auth service returns from signup while the email address is unconfirmed.
func decodeAuthResponse(raw json.RawMessage) (*AuthResponse, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("supabase: decode auth response: %w", err)
	}
	if _, ok := body["access_token"]; ok {
		user, _ := body["user"].(map[string]any)
		return &AuthResponse{User: user, Session: raw}, nil
	}
	if len(body) == 0 {
		return &AuthResponse{Session: nullSession}, nil
	}
	return &AuthResponse{User: body, Session: nullSession}, nil
}

// AuthorizeURL returns the URL that starts the OAuth flow with provider. The auth service negotiates with the
// provider and finally redirects the browser to redirectTo (or the project's site URL when empty).
// No request is made.
func (c *Client) AuthorizeURL(provider, redirectTo string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", errors.New("supabase: OAuth provider is required")
	}
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.endpoint("/auth/v1/authorize", q), nil
}
