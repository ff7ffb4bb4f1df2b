package gateway

import (
	"context"
	"errors"
	"net/http"

	"vpms_console/internal/domain"
)

// Login and Register go out without the bearer: a rejected password says
// nothing about the credential the console currently holds.

func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodPost, path: "/user/login", route: "/user/login",
		body:   domain.LoginDTO{Email: email, Password: password},
		public: true,
	})
	if err != nil {
		return nil, err
	}
	resp, err := decodeOne[domain.AuthResponse](raw)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Token == "" {
		return nil, errors.New("login response carried no token")
	}
	if resp.User.Role == "" {
		resp.User.Role = resp.Role
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost, path: "/user/register", route: "/user/register",
		body: map[string]string{
			"name":     name,
			"email":    email,
			"password": password,
		},
		public: true,
	})
	return err
}
