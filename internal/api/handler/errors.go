package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/gateway"
	"vpms_console/internal/payment"
	"vpms_console/internal/router"
	"vpms_console/internal/service"
	"vpms_console/internal/session"
	"vpms_console/internal/view"
)

// statusFor maps an action error onto the console API's status codes.
func statusFor(err error) int {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, view.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, router.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, router.ErrNotMounted), errors.Is(err, view.ErrUnknownView):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, payment.ErrInvalidTransition),
		errors.Is(err, payment.ErrInvoiceClosed):
		return http.StatusConflict
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusBadRequest:
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}

func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	body := gin.H{"error": gateway.Message(err, fallback)}
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		body["error"] = authErr.Message
	}
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		body["fields"] = vErr.Fields
	}
	c.JSON(statusFor(err), body)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
