package gateway

import (
	"context"
	"fmt"
	"net/http"

	"vpms_console/internal/domain"
)

func (c *Client) ListSlots(ctx context.Context) ([]domain.ParkingSlot, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/slots", route: "/slots"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.ParkingSlot](raw, "slots", "data")
}

// ListAvailableSlots returns the slots the API calls free, by type when t is
// set. The API only looks at the occupied flag.
func (c *Client) ListAvailableSlots(ctx context.Context, t domain.SlotType) ([]domain.ParkingSlot, error) {
	if t == "" {
		raw, err := c.do(ctx, call{method: http.MethodGet, path: "/slots/available", route: "/slots/available"})
		if err != nil {
			return nil, err
		}
		return decodeList[domain.ParkingSlot](raw, "slots", "data")
	}
	raw, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/slots/available/type/" + string(t),
		route:  "/slots/available/type/{type}",
	})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.ParkingSlot](raw, "slots", "data")
}

func (c *Client) GetSlot(ctx context.Context, id int64) (*domain.ParkingSlot, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/slots/%d", id), route: "/slots/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.ParkingSlot](raw, "slot", "data")
}

func (c *Client) CreateSlot(ctx context.Context, dto domain.SlotDTO) (*domain.ParkingSlot, error) {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: "/slots", route: "/slots", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.ParkingSlot](raw, "slot", "data")
}

func (c *Client) UpdateSlot(ctx context.Context, id int64, dto domain.SlotDTO) (*domain.ParkingSlot, error) {
	raw, err := c.do(ctx, call{method: http.MethodPut, path: fmt.Sprintf("/slots/%d", id), route: "/slots/{id}", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.ParkingSlot](raw, "slot", "data")
}

func (c *Client) UpdateOccupancy(ctx context.Context, id int64, occupied bool) (*domain.ParkingSlot, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   fmt.Sprintf("/slots/slot/%d", id),
		route:  "/slots/slot/{id}",
		body:   map[string]bool{"occupied": occupied},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.ParkingSlot](raw, "slot", "data")
}

func (c *Client) DeleteSlot(ctx context.Context, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: fmt.Sprintf("/slots/%d", id), route: "/slots/{id}"})
	return err
}
