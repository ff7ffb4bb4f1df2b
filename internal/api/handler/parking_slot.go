package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/domain"
	"vpms_console/internal/service"
)

type ParkingSlotHandler struct {
	parkingService *service.ParkingService
}

func NewParkingSlotHandler(ps *service.ParkingService) *ParkingSlotHandler {
	return &ParkingSlotHandler{parkingService: ps}
}

// POST /actions/slots
func (h *ParkingSlotHandler) CreateParkingSlot(c *gin.Context) {
	var dto domain.SlotDTO
	if !bindJSON(c, &dto) {
		return
	}
	slot, err := h.parkingService.CreateSlot(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "Failed to create slot")
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// PUT /actions/slots/:id
func (h *ParkingSlotHandler) UpdateParkingSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.SlotDTO
	if !bindJSON(c, &dto) {
		return
	}
	slot, err := h.parkingService.UpdateSlot(c.Request.Context(), id, dto)
	if err != nil {
		respondError(c, err, "Failed to update slot")
		return
	}
	c.JSON(http.StatusOK, slot)
}

// POST /actions/slots/:id/toggle
func (h *ParkingSlotHandler) ToggleOccupancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	slot, err := h.parkingService.ToggleOccupancy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to update slot status")
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DELETE /actions/slots/:id
func (h *ParkingSlotHandler) DeleteParkingSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteSlot(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete slot")
		return
	}
	c.Status(http.StatusNoContent)
}
