package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"finedine/internal/cart"
	"finedine/internal/common/logger"
	"finedine/internal/domain"
	"finedine/internal/repository"
	"finedine/internal/service"
	"finedine/internal/session"
)

const deviceHeader = "X-Device-ID"

// Handler bundles everything the routes need.
type Handler struct {
	orders   *service.OrderService
	menu     *service.MenuService
	carts    *cart.Store
	sessions *session.Tracker
	idle     *session.IdleWatcher
	settings repository.Settings
	lg       *logger.Logger
	checks   map[string]func(context.Context) error
}

// AddCheck registers a named dependency probe for the health endpoint.
func (h *Handler) AddCheck(name string, fn func(context.Context) error) {
	if h.checks == nil {
		h.checks = make(map[string]func(context.Context) error)
	}
	h.checks[name] = fn
}

func NewHandler(orders *service.OrderService, menu *service.MenuService, carts *cart.Store,
	sessions *session.Tracker, idle *session.IdleWatcher, settings repository.Settings, lg *logger.Logger) *Handler {
	return &Handler{orders: orders, menu: menu, carts: carts, sessions: sessions, idle: idle, settings: settings, lg: lg}
}

// Router builds the gin engine. Customer routes count as device activity for
// the idle window; staff routes do not.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/healthz", h.health)

	customer := api.Group("", h.trackActivity())
	{
		customer.GET("/menu", h.listMenu)
		customer.GET("/cart", h.getCart)
		customer.POST("/cart/items", h.addToCart)
		customer.PUT("/cart/items/:itemID", h.setCartQuantity)
		customer.DELETE("/cart/items/:itemID", h.removeFromCart)
		customer.DELETE("/cart", h.clearCart)
		customer.POST("/orders", h.placeOrder)
		customer.GET("/orders/:id", h.orderStatus)
		customer.POST("/orders/:id/items", h.appendItems)
		customer.POST("/orders/:id/help", h.requestHelp)
	}

	staff := api.Group("/staff")
	{
		staff.GET("/orders", h.liveBoard)
		staff.POST("/orders/:id/approve", h.approveOrder)
		staff.POST("/orders/:id/items/:idx/served", h.markItemServed)
		staff.POST("/orders/:id/serve", h.serveOrder)
		staff.POST("/orders/:id/archive", h.archiveOrder)
		staff.POST("/orders/:id/help/resolve", h.resolveHelp)
		staff.POST("/tables/:tableID/clear", h.clearTable)
		staff.GET("/history", h.history)
		staff.GET("/settings/print", h.getPrintSettings)
		staff.PUT("/settings/print", h.savePrintSettings)
		staff.GET("/menu", h.staffMenu)
		staff.POST("/menu", h.addMenuItem)
		staff.PUT("/menu/:id", h.updateMenuItem)
		staff.PATCH("/menu/:id/availability", h.setAvailability)
	}

	return r
}

// health runs the registered dependency probes and answers 503 when any
// backing service is unreachable.
func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}
	for name, fn := range h.checks {
		if err := fn(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}
	body := gin.H{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["deps"] = deps
	}
	c.JSON(status, body)
}

func (h *Handler) trackActivity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if dev := c.GetHeader(deviceHeader); dev != "" {
			h.idle.Touch(dev)
		}
		c.Next()
	}
}

func deviceID(c *gin.Context) string { return c.GetHeader(deviceHeader) }

// fail maps service errors onto HTTP statuses so "not found" never looks
// like a storage failure and invalid transitions come back as conflicts.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, service.ErrNotServed),
		errors.Is(err, repository.ErrAlreadyArchived),
		errors.Is(err, service.ErrNothingToArchive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrUnknownTable),
		errors.Is(err, service.ErrItemUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
