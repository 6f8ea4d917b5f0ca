package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sahzadahmad246/perfectceiling/internal/pkg/response"
	"github.com/sahzadahmad246/perfectceiling/internal/service"
)

type MonitorHandler struct {
	monitor *service.MonitorService
}

func NewMonitorHandler(monitor *service.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

// timeRange reads from/to unix-second query params, defaulting to the last
// 24 hours.
func timeRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if value := c.Query("from"); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			from = time.Unix(parsed, 0)
		}
	}
	if value := c.Query("to"); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			to = time.Unix(parsed, 0)
		}
	}
	return from, to
}

func (h *MonitorHandler) SharingMetrics(c *gin.Context) {
	from, to := timeRange(c)
	metrics, err := h.monitor.SharingMetrics(c.Request.Context(), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, metrics)
}

func (h *MonitorHandler) SecurityMetrics(c *gin.Context) {
	from, to := timeRange(c)
	metrics, err := h.monitor.SecurityMetrics(c.Request.Context(), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, metrics)
}
