package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/domain"
	"vpms_console/internal/router"
	"vpms_console/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	auth   *service.AuthService
	router *router.Router
}

func NewUserHandler(us *service.UserService, as *service.AuthService, r *router.Router) *UserHandler {
	return &UserHandler{users: us, auth: as, router: r}
}

// PUT /actions/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var dto domain.ProfileUpdateDTO
	if !bindJSON(c, &dto) {
		return
	}
	res, err := h.auth.UpdateProfile(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	if res.LoggedOut {
		h.router.ForceLogin()
	}
	c.JSON(http.StatusOK, res)
}

// PUT /actions/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.UpdateUserDTO
	if !bindJSON(c, &dto) {
		return
	}
	u, err := h.users.Update(c.Request.Context(), id, dto)
	if err != nil {
		respondError(c, err, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, u)
}

// DELETE /actions/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /actions/users/:id/role?role=
func (h *UserHandler) AssignRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.AssignRole(c.Request.Context(), id, domain.Role(c.Query("role")))
	if err != nil {
		respondError(c, err, "Failed to assign role")
		return
	}
	c.JSON(http.StatusOK, u)
}
