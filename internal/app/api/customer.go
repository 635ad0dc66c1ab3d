package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finedine/internal/domain"
	"finedine/internal/service"
)

func (h *Handler) listMenu(c *gin.Context) {
	items, err := h.menu.List(c.Request.Context())
	if err != nil {
		h.lg.Error("menu_list_failed", err, nil)
		fail(c, err)
		return
	}
	available := make([]*domain.MenuItem, 0, len(items))
	for _, m := range items {
		if m.Available {
			available = append(available, m)
		}
	}
	c.JSON(http.StatusOK, available)
}

func (h *Handler) getCart(c *gin.Context) {
	items, err := h.carts.Get(c.Request.Context(), deviceID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": domain.ItemsTotal(items)})
}

func (h *Handler) addToCart(c *gin.Context) {
	var req struct {
		MenuItemID string `json:"menu_item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	m, err := h.menu.Get(ctx, req.MenuItemID)
	if err != nil {
		fail(c, err)
		return
	}
	items, err := h.carts.Add(ctx, deviceID(c), m)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": domain.ItemsTotal(items)})
}

func (h *Handler) setCartQuantity(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := h.carts.SetQuantity(c.Request.Context(), deviceID(c), c.Param("itemID"), req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": domain.ItemsTotal(items)})
}

func (h *Handler) removeFromCart(c *gin.Context) {
	items, err := h.carts.Remove(c.Request.Context(), deviceID(c), c.Param("itemID"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": domain.ItemsTotal(items)})
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), deviceID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// placeOrder turns the device's cart into a Pending order. The cart is
// cleared only after the order exists, so a failed placement keeps it.
func (h *Handler) placeOrder(c *gin.Context) {
	var req struct {
		TableID string `json:"table_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	dev := deviceID(c)
	cartItems, err := h.carts.Get(ctx, dev)
	if err != nil {
		fail(c, err)
		return
	}
	lines := make([]service.PlaceLine, 0, len(cartItems))
	for _, it := range cartItems {
		lines = append(lines, service.PlaceLine{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}
	o, err := h.orders.Place(ctx, req.TableID, dev, lines)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.carts.Clear(ctx, dev); err != nil {
		h.lg.Error("cart_clear_failed", err, map[string]any{"device": dev})
	}
	c.JSON(http.StatusCreated, o)
}

// orderStatus is the customer's poll target, including the remaining
// session time once the order is served.
func (h *Handler) orderStatus(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.orders.Get(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"order": o}
	if remaining, ok := h.sessions.Lookup(ctx, o.ID); ok {
		resp["session_remaining_seconds"] = int(remaining.Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) appendItems(c *gin.Context) {
	var req struct {
		Lines []service.PlaceLine `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := h.orders.Append(c.Request.Context(), c.Param("id"), req.Lines)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) requestHelp(c *gin.Context) {
	if err := h.orders.RequestHelp(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func atoiParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad " + name})
		return 0, false
	}
	return n, true
}
