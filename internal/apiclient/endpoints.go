package apiclient

import (
	"context"
	"net/url"

	"github.com/nhle/lms-client/internal/model"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName string     `json:"firstName" validate:"required"`
	LastName  string     `json:"lastName" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password" validate:"required,min=8"`
	Role      model.Role `json:"role" validate:"required,oneof=student instructor"`
}

// AuthEnvelope is the only accepted shape of a login or registration
// response: {"user": {...}, "token": "..."}.
type AuthEnvelope struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// ProfileEnvelope is the response of GET /users/me: {"user": {...}}.
type ProfileEnvelope struct {
	User *model.User `json:"user"`
}

// NotificationsEnvelope is the response of GET /notifications:
// {"items": [...]}. A missing or null items field is malformed; an empty
// list is not.
type NotificationsEnvelope struct {
	Items []model.NotificationItem `json:"items"`
}

// Login posts credentials. The call is anonymous: a 401 here is the
// server's answer to bad credentials, not a session failure.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthEnvelope, error) {
	var env AuthEnvelope
	if err := c.Post(ctx, "/auth/login", req, &env, Anonymous()); err != nil {
		return nil, err
	}
	return &env, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthEnvelope, error) {
	var env AuthEnvelope
	if err := c.Post(ctx, "/auth/register", req, &env, Anonymous()); err != nil {
		return nil, err
	}
	return &env, nil
}

// Me fetches the profile of the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var env ProfileEnvelope
	if err := c.Get(ctx, "/users/me", &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, NewError(KindMalformedResponse, "GET /users/me", "missing user")
	}
	return env.User, nil
}

// ListNotifications fetches the current user's notifications in server order.
func (c *Client) ListNotifications(ctx context.Context) ([]model.NotificationItem, error) {
	var env NotificationsEnvelope
	if err := c.Get(ctx, "/notifications", &env); err != nil {
		return nil, err
	}
	if env.Items == nil {
		return nil, NewError(KindMalformedResponse, "GET /notifications", "missing items")
	}
	for i := range env.Items {
		env.Items[i].Kind = env.Items[i].Kind.Normalize()
	}
	return env.Items, nil
}

// MarkNotificationRead marks a single notification read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Patch(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks every notification read on the server.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.Patch(ctx, "/notifications/read-all", nil, nil)
}
