package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/domain"
	"vpms_console/internal/service"
)

// VehicleLogHandler runs the entry/exit desk.
type VehicleLogHandler struct {
	parkingService *service.ParkingService
}

func NewVehicleLogHandler(ps *service.ParkingService) *VehicleLogHandler {
	return &VehicleLogHandler{parkingService: ps}
}

type paymentRequest struct {
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	UPIID         string               `json:"upiId"`
}

// GET /actions/users/lookup?email=
func (h *VehicleLogHandler) LookupUser(c *gin.Context) {
	u, err := h.parkingService.LookupUser(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err, "User not found. Please check the email address.")
		return
	}
	c.JSON(http.StatusOK, u)
}

// POST /actions/vehicle-log/entry
func (h *VehicleLogHandler) VehicleEntry(c *gin.Context) {
	var dto domain.VehicleEntryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all required fields."})
		return
	}
	entry, err := h.parkingService.RecordEntry(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "Failed to record vehicle entry")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// POST /actions/vehicle-log/:id/exit
func (h *VehicleLogHandler) VehicleExit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.parkingService.RecordExit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to record vehicle exit")
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /actions/vehicle-log/:id/settle
func (h *VehicleLogHandler) SettleExit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	checkout, inv, err := h.parkingService.SettleExitByID(c.Request.Context(), id, req.PaymentMethod, req.UPIID)
	if err != nil {
		respondError(c, err, "Payment failed. Please try again.")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"invoice": inv, "payment": checkout.Snapshot()})
}

// PUT /actions/vehicle-log/:id
func (h *VehicleLogHandler) UpdateLog(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.VehicleLogUpdateDTO
	if !bindJSON(c, &dto) {
		return
	}
	l, err := h.parkingService.UpdateLog(c.Request.Context(), id, dto)
	if err != nil {
		respondError(c, err, "Failed to update log")
		return
	}
	c.JSON(http.StatusOK, l)
}
