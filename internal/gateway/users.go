package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"vpms_console/internal/domain"
)

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/user/all", route: "/user/all"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.User](raw, "users", "data")
}

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/user/profile", route: "/user/profile"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw, "user", "data")
}

func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/user/%d", id), route: "/user/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw, "user", "data")
}

func (c *Client) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/user/email/" + url.PathEscape(email),
		route:  "/user/email/{email}",
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw, "user", "data")
}

func (c *Client) UpdateUser(ctx context.Context, id int64, dto domain.UpdateUserDTO) (*domain.User, error) {
	raw, err := c.do(ctx, call{method: http.MethodPut, path: fmt.Sprintf("/user/%d", id), route: "/user/{id}", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw, "user", "data")
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: fmt.Sprintf("/user/%d", id), route: "/user/{id}"})
	return err
}

func (c *Client) AssignRole(ctx context.Context, id int64, role domain.Role) (*domain.User, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   fmt.Sprintf("/user/assign-role/%d?role=%s", id, url.QueryEscape(string(role))),
		route:  "/user/assign-role/{id}",
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.User](raw, "user", "data")
}
