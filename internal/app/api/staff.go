package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finedine/internal/domain"
)

func (h *Handler) liveBoard(c *gin.Context) {
	groups, err := h.orders.Grouped(c.Request.Context())
	if err != nil {
		h.lg.Error("live_board_failed", err, nil)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) approveOrder(c *gin.Context) {
	o, err := h.orders.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) markItemServed(c *gin.Context) {
	idx, ok := atoiParam(c, "idx")
	if !ok {
		return
	}
	o, err := h.orders.MarkItemServed(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// serveOrder is the explicit final serve. The countdown starts here, not at
// Ready, so the response carries the remaining session time to make that
// visible on the staff board.
func (h *Handler) serveOrder(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.orders.Serve(ctx, c.Param("id"))
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

func (h *Handler) archiveOrder(c *gin.Context) {
	arch, err := h.orders.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, arch)
}

func (h *Handler) resolveHelp(c *gin.Context) {
	if err := h.orders.ResolveHelp(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearTable(c *gin.Context) {
	res, err := h.orders.ClearTable(c.Request.Context(), c.Param("tableID"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) history(c *gin.Context) {
	day, err := time.Parse("2006-01-02", c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	list, summary, err := h.orders.History(c.Request.Context(), day)
	if err != nil {
		h.lg.Error("history_failed", err, map[string]any{"date": day.Format("2006-01-02")})
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "summary": summary})
}

func (h *Handler) getPrintSettings(c *gin.Context) {
	s, err := h.settings.GetPrint(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) savePrintSettings(c *gin.Context) {
	var s domain.PrintSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.settings.SavePrint(c.Request.Context(), &s); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) staffMenu(c *gin.Context) {
	items, err := h.menu.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) addMenuItem(c *gin.Context) {
	var m domain.MenuItem
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := h.menu.Add(c.Request.Context(), &m)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (h *Handler) updateMenuItem(c *gin.Context) {
	var m domain.MenuItem
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.ID = c.Param("id")
	if err := h.menu.Update(c.Request.Context(), &m); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) setAvailability(c *gin.Context) {
	var req struct {
		Available bool `json:"available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.menu.SetAvailability(c.Request.Context(), c.Param("id"), req.Available); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
