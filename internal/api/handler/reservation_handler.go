package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/domain"
	"vpms_console/internal/service"
)

type ReservationHandler struct {
	reservations *service.ReservationService
}

func NewReservationHandler(rs *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: rs}
}

// POST /actions/reservations/quote
func (h *ReservationHandler) Quote(c *gin.Context) {
	var dto domain.ReservationDTO
	if !bindJSON(c, &dto) {
		return
	}
	q, err := h.reservations.Quote(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "Cannot price this booking")
		return
	}
	c.JSON(http.StatusOK, q)
}

// POST /actions/reservations books the slot and pays for it. The response is
// sent while the payment settles; payment-completed follows on the bus.
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req service.ReserveRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.reservations.ReserveAndPay(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create reservation")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"reservation": res.Reservation,
		"invoice":     res.Invoice,
		"quote":       res.Quote,
		"payment":     res.Checkout.Snapshot(),
	})
}

// PUT /actions/reservations/:id
func (h *ReservationHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.ReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.reservations.Update(c.Request.Context(), id, dto)
	if err != nil {
		respondError(c, err, "Failed to update reservation")
		return
	}
	c.JSON(http.StatusOK, r)
}

// PUT /actions/reservations/:id/status
func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status domain.ReservationStatus `json:"status"`
	}
	if !bindJSON(c, &body) {
		return
	}
	r, err := h.reservations.UpdateStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		respondError(c, err, "Failed to update reservation status")
		return
	}
	c.JSON(http.StatusOK, r)
}

// DELETE /actions/reservations/:id
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.reservations.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to cancel reservation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reservation cancelled"})
}

// POST /actions/reservations/trigger-completion
func (h *ReservationHandler) TriggerCompletion(c *gin.Context) {
	msg, err := h.reservations.TriggerCompletion(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to trigger auto-completion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
