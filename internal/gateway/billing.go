package gateway

import (
	"context"
	"fmt"
	"net/http"

	"vpms_console/internal/domain"
)

func (c *Client) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: "/billing", route: "/billing"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.Invoice](raw, "data", "invoices")
}

func (c *Client) ListUserInvoices(ctx context.Context, userID int64) ([]domain.Invoice, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/billing/user/%d", userID), route: "/billing/user/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.Invoice](raw, "data", "invoices")
}

func (c *Client) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	raw, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/billing/%d", id), route: "/billing/{id}"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Invoice](raw, "data", "invoice")
}

func (c *Client) CreateInvoice(ctx context.Context, dto domain.CreateInvoiceDTO) (*domain.Invoice, error) {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: "/billing", route: "/billing", body: dto})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Invoice](raw, "data", "invoice")
}

func (c *Client) PayInvoice(ctx context.Context, id int64, method domain.PaymentMethod) (*domain.Invoice, error) {
	raw, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/billing/%d/pay", id),
		route:  "/billing/{id}/pay",
		body:   map[string]domain.PaymentMethod{"paymentMethod": method},
	})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Invoice](raw, "data", "invoice")
}

func (c *Client) CancelInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: fmt.Sprintf("/billing/%d/cancel", id), route: "/billing/{id}/cancel"})
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Invoice](raw, "data", "invoice")
}
