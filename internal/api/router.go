package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vpms_console/internal/api/handler"
	"vpms_console/internal/api/middleware"
	"vpms_console/internal/domain"
	"vpms_console/internal/metrics"
	"vpms_console/internal/router"
	"vpms_console/internal/service"
)

func SetupRouter(s *service.Services, r *router.Router, authMw *middleware.AuthMiddleware,
	wsManager *handler.WebSocketManager, allowedOrigins []string, l *zap.Logger) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(middleware.RequestLogger(l))
	e.Use(middleware.Metrics())

	origins := middleware.NewOrigins(allowedOrigins)
	e.Use(origins.CORS())

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "view": r.Current()})
	})
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// notifications go to local clients and pages from allowed origins
	wsHandler := handler.NewWebSocketHandler(wsManager, origins.CheckOrigin)
	e.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(s.Auth, r, l)
	authRoutes := e.Group("/auth")
	authRoutes.Use(origins.Guard())
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.GET("/me", authHandler.Me)
	}

	uiH := handler.NewUIHandler(r, s)
	ui := e.Group("/ui")
	ui.Use(origins.Guard(), authMw.Authenticate())
	{
		ui.GET("/menu", uiH.Menu)
		ui.GET("/current", uiH.Current)
		ui.POST("/navigate/:view", uiH.Navigate)
		ui.POST("/panels/:view", uiH.OpenPanel)
		ui.DELETE("/panels/:view", uiH.ClosePanel)
		ui.GET("/views/:view", uiH.View)
		ui.POST("/views/:view/refresh", uiH.Refresh)
	}

	can := authMw.AuthorizeAction
	actions := e.Group("/actions")
	actions.Use(origins.Guard(), authMw.Authenticate())
	{
		slotH := handler.NewParkingSlotHandler(s.Parking)
		slotRoutes := actions.Group("/slots")
		{
			slotRoutes.POST("", can(domain.ActionManageSlots), slotH.CreateParkingSlot)
			slotRoutes.PUT("/:id", can(domain.ActionManageSlots), slotH.UpdateParkingSlot)
			slotRoutes.DELETE("/:id", can(domain.ActionManageSlots), slotH.DeleteParkingSlot)
			slotRoutes.POST("/:id/toggle", can(domain.ActionToggleOccupancy), slotH.ToggleOccupancy)
		}

		logH := handler.NewVehicleLogHandler(s.Parking)
		actions.GET("/users/lookup", can(domain.ActionRecordEntry), logH.LookupUser)
		logRoutes := actions.Group("/vehicle-log")
		{
			logRoutes.POST("/entry", can(domain.ActionRecordEntry), logH.VehicleEntry)
			logRoutes.POST("/:id/exit", can(domain.ActionRecordExit), logH.VehicleExit)
			logRoutes.POST("/:id/settle", can(domain.ActionRecordExit), logH.SettleExit)
			logRoutes.PUT("/:id", can(domain.ActionRecordExit), logH.UpdateLog)
		}

		resH := handler.NewReservationHandler(s.Reservations)
		resRoutes := actions.Group("/reservations")
		{
			resRoutes.POST("/quote", can(domain.ActionReserve), resH.Quote)
			resRoutes.POST("", can(domain.ActionReserve), resH.Reserve)
			resRoutes.PUT("/:id", can(domain.ActionEditReservation), resH.Update)
			resRoutes.PUT("/:id/status", can(domain.ActionEditReservation), resH.UpdateStatus)
			resRoutes.DELETE("/:id", can(domain.ActionCancelReservation), resH.Cancel)
			resRoutes.POST("/trigger-completion", can(domain.ActionTriggerCompletion), resH.TriggerCompletion)
		}

		billH := handler.NewBillingHandler(s.Billing)
		invoiceRoutes := actions.Group("/invoices")
		{
			invoiceRoutes.POST("/:id/pay", can(domain.ActionPayInvoice), billH.Pay)
			invoiceRoutes.GET("/:id/checkout", can(domain.ActionPayInvoice), billH.Checkout)
			invoiceRoutes.DELETE("/:id/checkout", can(domain.ActionPayInvoice), billH.CancelCheckout)
			invoiceRoutes.POST("/:id/cancel", can(domain.ActionCancelInvoice), billH.Cancel)
		}

		userH := handler.NewUserHandler(s.Users, s.Auth, r)
		actions.PUT("/profile", can(domain.ActionUpdateProfile), userH.UpdateProfile)
		userRoutes := actions.Group("/users")
		{
			userRoutes.PUT("/:id", can(domain.ActionManageUsers), userH.Update)
			userRoutes.DELETE("/:id", can(domain.ActionManageUsers), userH.Delete)
			userRoutes.PUT("/:id/role", can(domain.ActionManageUsers), userH.AssignRole)
		}

		actions.POST("/refresh", can(domain.ActionRefreshAll), uiH.RefreshAll)
	}

	return e
}
