package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vpms_console/internal/domain"
	"vpms_console/internal/router"
	"vpms_console/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	router      *router.Router
	logger      *zap.Logger
}

func NewAuthHandler(as *service.AuthService, r *router.Router, l *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: as, router: r, logger: l}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User *domain.User      `json:"user"`
	View domain.ViewName   `json:"view"`
	Menu []router.MenuItem `json:"menu"`
}

func (h *AuthHandler) sessionBody(s domain.Session) sessionResponse {
	return sessionResponse{User: s.User, View: h.router.Current(), Menu: h.router.Menu()}
}

func (h *AuthHandler) landOnDashboard() {
	if _, err := h.router.Navigate(domain.ViewDashboard); err != nil {
		h.logger.Warn("could not open dashboard", zap.Error(err))
	}
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body credentials
	if !bindJSON(c, &body) {
		return
	}
	s, err := h.authService.Login(c.Request.Context(), domain.LoginDTO{Email: body.Email, Password: body.Password})
	if err != nil {
		respondError(c, err, "Login failed. Please check your credentials.")
		return
	}
	h.landOnDashboard()
	c.JSON(http.StatusOK, h.sessionBody(s))
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var dto domain.RegisterDTO
	if !bindJSON(c, &dto) {
		return
	}
	s, err := h.authService.Register(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "Registration failed. Please try again.")
		return
	}
	h.landOnDashboard()
	c.JSON(http.StatusCreated, h.sessionBody(s))
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		respondError(c, err, "Logout failed")
		return
	}
	h.router.ForceLogin()
	c.JSON(http.StatusOK, gin.H{"view": h.router.Current()})
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	s := h.authService.Session()
	if !s.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please log in", "view": h.router.Current()})
		return
	}
	c.JSON(http.StatusOK, h.sessionBody(s))
}
