package gateway

import (
	"context"
	"fmt"
	"net/http"

	"vpms_console/internal/domain"
)

func (c *Client) ListReservations(ctx context.Context) ([]domain.Reservation, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/reservations", route: "/reservations"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.Reservation](raw, "reservations", "data")
}

func (c *Client) ListUserReservations(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/reservations/user/%d", userID), route: "/reservations/user/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.Reservation](raw, "reservations", "data")
}

func (c *Client) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/reservations/%d", id), route: "/reservations/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Reservation](raw, "reservation", "data")
}

func (c *Client) CreateReservation(ctx context.Context, dto domain.ReservationDTO) (*domain.Reservation, error) {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: "/reservations", route: "/reservations", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Reservation](raw, "reservation", "data")
}

func (c *Client) UpdateReservation(ctx context.Context, id int64, dto domain.ReservationDTO) (*domain.Reservation, error) {
	raw, err := c.do(ctx, call{method: http.MethodPut, path: fmt.Sprintf("/reservations/%d", id), route: "/reservations/{id}", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Reservation](raw, "reservation", "data")
}

func (c *Client) UpdateReservationStatus(ctx context.Context, id int64, status domain.ReservationStatus) (*domain.Reservation, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   fmt.Sprintf("/reservations/%d/status", id),
		route:  "/reservations/{id}/status",
		body:   map[string]domain.ReservationStatus{"status": status},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Reservation](raw, "reservation", "data")
}

func (c *Client) CancelReservation(ctx context.Context, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: fmt.Sprintf("/reservations/%d", id), route: "/reservations/{id}"})
	return err
}

// TriggerCompletion asks the API to complete every expired reservation and
// returns its summary message.
func (c *Client) TriggerCompletion(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: "/reservations/trigger-completion", route: "/reservations/trigger-completion"})
	if err != nil {
		return "", err
	}
	return serverMessage(raw), nil
}
