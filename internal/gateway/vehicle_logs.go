package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"vpms_console/internal/domain"
)

func (c *Client) ListLogs(ctx context.Context) ([]domain.VehicleLog, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/vehicle-log", route: "/vehicle-log"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.VehicleLog](raw, "logs", "data")
}

// LogCount returns the server's total alongside the list when it sends one.
func (c *Client) LogCount(ctx context.Context) (int, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/vehicle-log", route: "/vehicle-log"})
	if err != nil {
		return 0, err
	}
	var body struct {
		Count *int `json:"count"`
	}
	if isObject(raw) {
		if err := json.Unmarshal(raw, &body); err == nil && body.Count != nil {
			return *body.Count, nil
		}
	}
	logs, err := decodeList[domain.VehicleLog](raw, "logs", "data")
	if err != nil {
		return 0, err
	}
	return len(logs), nil
}

func (c *Client) ListUserLogs(ctx context.Context, userID int64) ([]domain.VehicleLog, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/vehicle-log/user/%d", userID), route: "/vehicle-log/user/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.VehicleLog](raw, "logs", "data")
}

func (c *Client) GetLog(ctx context.Context, id int64) (*domain.VehicleLog, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/vehicle-log/%d", id), route: "/vehicle-log/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.VehicleLog](raw, "log", "data")
}

func (c *Client) RecordEntry(ctx context.Context, dto domain.VehicleEntryDTO) (*domain.VehicleLog, error) {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: "/vehicle-log/entry", route: "/vehicle-log/entry", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.VehicleLog](raw, "log", "data")
}

func (c *Client) RecordExit(ctx context.Context, logID int64) (*domain.VehicleLog, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/vehicle-log/exit",
		route:  "/vehicle-log/exit",
		body:   map[string]int64{"logId": logID},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.VehicleLog](raw, "log", "data")
}

func (c *Client) UpdateLog(ctx context.Context, id int64, dto domain.VehicleLogUpdateDTO) (*domain.VehicleLog, error) {
	raw, err := c.do(ctx, call{method: http.MethodPut, path: fmt.Sprintf("/vehicle-log/%d", id), route: "/vehicle-log/{id}", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.VehicleLog](raw, "log", "data")
}
