package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/gateway"
	"vpms_console/internal/service"
)

type BillingHandler struct {
	billing *service.BillingService
}

func NewBillingHandler(bs *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: bs}
}

// POST /actions/invoices/:id/pay
func (h *BillingHandler) Pay(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	checkout, err := h.billing.Pay(c.Request.Context(), id, req.PaymentMethod, req.UPIID)
	if err != nil {
		if checkout != nil {
			_ = c.Error(err)
			c.JSON(statusFor(err), gin.H{
				"error":   gateway.Message(err, "Payment failed. Please try again."),
				"payment": checkout.Snapshot(),
			})
			return
		}
		respondError(c, err, "Payment failed. Please try again.")
		return
	}
	c.JSON(http.StatusAccepted, checkout.Snapshot())
}

// GET /actions/invoices/:id/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	checkout, found := h.billing.Checkout(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No payment in progress for this invoice"})
		return
	}
	c.JSON(http.StatusOK, checkout.Snapshot())
}

// DELETE /actions/invoices/:id/checkout
func (h *BillingHandler) CancelCheckout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.billing.CancelCheckout(id); err != nil {
		respondError(c, err, "Payment can no longer be cancelled")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /actions/invoices/:id/cancel
func (h *BillingHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	inv, err := h.billing.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to cancel invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}
