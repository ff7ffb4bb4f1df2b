package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vpms_console/internal/domain"
	"vpms_console/internal/router"
	"vpms_console/internal/service"
	"vpms_console/internal/view"
)

// UIHandler exposes navigation and view snapshots.
type UIHandler struct {
	router   *router.Router
	services *service.Services
}

func NewUIHandler(r *router.Router, s *service.Services) *UIHandler {
	return &UIHandler{router: r, services: s}
}

func viewParam(c *gin.Context) domain.ViewName {
	return domain.ViewName(c.Param("view"))
}

// viewParams reads the optional ?type= filter. "ALL" means no filter.
func viewParams(c *gin.Context) view.Params {
	t := strings.ToUpper(strings.TrimSpace(c.Query("type")))
	if t == "ALL" {
		t = ""
	}
	return view.Params{SlotType: domain.SlotType(t)}
}

// GET /ui/menu
func (h *UIHandler) Menu(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"menu": h.router.Menu()})
}

// GET /ui/current
func (h *UIHandler) Current(c *gin.Context) {
	name := h.router.Current()
	body := gin.H{"view": name}
	if snap, err := h.router.Snapshot(name); err == nil {
		body["snapshot"] = snap
	}
	c.JSON(http.StatusOK, body)
}

// POST /ui/navigate/:view
func (h *UIHandler) Navigate(c *gin.Context) {
	m, err := h.router.NavigateWith(viewParam(c), viewParams(c))
	if err != nil {
		respondError(c, err, "Cannot open view")
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": m.Name(), "snapshot": m.Snapshot()})
}

// POST /ui/panels/:view
func (h *UIHandler) OpenPanel(c *gin.Context) {
	m, err := h.router.OpenWith(viewParam(c), viewParams(c))
	if err != nil {
		respondError(c, err, "Cannot open view")
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": m.Name(), "snapshot": m.Snapshot()})
}

// DELETE /ui/panels/:view
func (h *UIHandler) ClosePanel(c *gin.Context) {
	if err := h.router.Close(viewParam(c)); err != nil {
		respondError(c, err, "View is not open")
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /ui/views/:view
func (h *UIHandler) View(c *gin.Context) {
	snap, err := h.router.Snapshot(viewParam(c))
	if err != nil {
		respondError(c, err, "View is not open")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// POST /ui/views/:view/refresh
func (h *UIHandler) Refresh(c *gin.Context) {
	m, err := h.router.Mounted(viewParam(c))
	if err != nil {
		respondError(c, err, "View is not open")
		return
	}
	m.Refetch()
	c.Status(http.StatusAccepted)
}

// POST /actions/refresh
func (h *UIHandler) RefreshAll(c *gin.Context) {
	h.services.RefreshAll(c.Request.Context())
	c.Status(http.StatusAccepted)
}
