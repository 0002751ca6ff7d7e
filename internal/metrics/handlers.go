package metrics

import (
	"net/http"
	"strconv"

	"call-router/internal/store"
	"call-router/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	defaultTrendDays   = 7
	defaultRecentLimit = 20
)

// Handlers exposes the analytics surface. Validation errors are 4xx with a
// descriptive message; anything unexpected is a generic 500.
type Handlers struct {
	Service *Service
}

func (h Handlers) GetKPIs(c *gin.Context) {
	department := c.Query("department")
	if department != "" && !store.ValidDepartment(department) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department. Must be: sales, support, or porting"})
		return
	}

	out, err := h.Service.KPIs(c.Request.Context(), department)
	if err != nil {
		logger.FromGin(c).Error("kpi query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetTrend(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultTrendDays, "Invalid 'days' parameter. Must be a number")
	if !ok {
		return
	}
	if days < 1 || days > 365 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Days must be between 1 and 365"})
		return
	}
	department := c.Query("department")
	if department != "" && !store.ValidDepartment(department) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department. Must be: sales, support, or porting"})
		return
	}

	out, err := h.Service.Trend(c.Request.Context(), days, department)
	if err != nil {
		logger.FromGin(c).Error("trend query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetRecent(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultRecentLimit, "Invalid 'limit' parameter. Must be a number")
	if !ok {
		return
	}
	if limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be between 1 and 1000"})
		return
	}
	department := c.Query("department")
	if department != "" && !store.ValidDepartment(department) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department. Must be: sales, support, or porting"})
		return
	}

	out, err := h.Service.Recent(c.Request.Context(), limit, department)
	if err != nil {
		logger.FromGin(c).Error("recent query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "analytics-api"})
}

// intQuery parses an optional integer query param, writing a 400 on garbage.
func intQuery(c *gin.Context, key string, def int, errMsg string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return 0, false
	}
	return n, true
}
