package api

import (
	"context"
	"fmt"
	"net/http"

	"fixora/internal/models"
)

// Login starts a cookie session. Any token the server returns alongside the
// user replaces the configured bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*models.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, &ValidationError{Field: "email", Message: "email and password are required"}
	}

	var env struct {
		User  *models.Session `json:"user"`
		Token string          `json:"token"`
	}
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", nil, creds, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, &TransportError{Op: "login", Message: "response carried no user"}
	}
	if env.Token != "" {
		c.SetToken(env.Token)
	}
	return env.User, nil
}

// Me returns the current session user. An expired session surfaces as an
// AuthError.
func (c *Client) Me(ctx context.Context) (*models.Session, error) {
	var env sessionEnvelope
	if err := c.doJSON(ctx, "me", http.MethodGet, "/auth/me", nil, nil, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, &AuthError{StatusCode: http.StatusUnauthorized, Message: "no active session"}
	}
	return env.User, nil
}

// Logout ends the server session and forgets the bearer token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.SetToken("")
	return nil
}

// RequireRole fetches the session and checks it belongs to role.
func (c *Client) RequireRole(ctx context.Context, role models.Role) (*models.Session, error) {
	session, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	if session.Role != role {
		return nil, &AuthError{
			StatusCode: http.StatusForbidden,
			Message:    fmt.Sprintf("this view requires a %s account", role),
		}
	}
	return session, nil
}
