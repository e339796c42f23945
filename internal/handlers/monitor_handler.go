package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/models/dto"
	"github.com/xiongtingping/wenpai-sub001/internal/monitor"
	"github.com/xiongtingping/wenpai-sub001/internal/recovery"
	"github.com/xiongtingping/wenpai-sub001/internal/service"
)

type MonitorService interface {
	StartMonitor(ctx context.Context, req *dto.StartMonitor) (models.StatusRecord, error)
	RefreshNow(checkoutID string) error
	Pause(checkoutID string) error
	Resume(checkoutID string) error
	StopMonitor(checkoutID string) error
	Discard(ctx context.Context, checkoutID string) error
	GetRecord(ctx context.Context, checkoutID string) (models.StatusRecord, error)
	RecoverActive(ctx context.Context) ([]recovery.Resumable, error)
	CheckAllActive(ctx context.Context) (map[string]recovery.CheckResult, error)
	HandleCheckoutCreated(ctx context.Context, event models.CheckoutCreatedEvent) error
}

type MonitorHandler struct {
	Service MonitorService
}

func NewMonitorHandler(s MonitorService) *MonitorHandler {
	return &MonitorHandler{Service: s}
}

// POST /monitors
func (h *MonitorHandler) StartMonitor(c *gin.Context) {
	var req dto.StartMonitor
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	record, err := h.Service.StartMonitor(c.Request.Context(), &req)
	if errors.Is(err, monitor.ErrAlreadyTracked) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, record)
}

// GET /monitors/:id
func (h *MonitorHandler) GetRecord(c *gin.Context) {
	record, err := h.Service.GetRecord(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrUnknownCheckout) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// POST /monitors/:id/refresh
func (h *MonitorHandler) RefreshNow(c *gin.Context) {
	err := h.Service.RefreshNow(c.Param("id"))
	switch {
	case errors.Is(err, service.ErrUnknownCheckout):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, monitor.ErrPaused), errors.Is(err, monitor.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
	}
}

// POST /monitors/:id/pause
func (h *MonitorHandler) Pause(c *gin.Context) {
	h.lifecycleAction(c, h.Service.Pause, "paused")
}

// POST /monitors/:id/resume
func (h *MonitorHandler) Resume(c *gin.Context) {
	h.lifecycleAction(c, h.Service.Resume, "resumed")
}

// POST /monitors/:id/stop
func (h *MonitorHandler) Stop(c *gin.Context) {
	h.lifecycleAction(c, h.Service.StopMonitor, "stopped")
}

// DELETE /monitors/:id
func (h *MonitorHandler) Discard(c *gin.Context) {
	if err := h.Service.Discard(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "discarded"})
}

// GET /monitors
func (h *MonitorHandler) RecoverActive(c *gin.Context) {
	resumables, err := h.Service.RecoverActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": resumables})
}

// POST /monitors/check-all
func (h *MonitorHandler) CheckAll(c *gin.Context) {
	results, err := h.Service.CheckAllActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *MonitorHandler) lifecycleAction(c *gin.Context, action func(string) error, status string) {
	err := action(c.Param("id"))
	switch {
	case errors.Is(err, service.ErrUnknownCheckout):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, monitor.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// HandleEvents dispatches kafka messages by topic.
func (h *MonitorHandler) HandleEvents(ctx context.Context, topic string, value []byte) error {
	switch topic {
	case models.CheckoutCreatedTopic2Subscribe:
		var event models.CheckoutCreatedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			logrus.Errorf("Error parsing checkout created event %s", err.Error())
			return fmt.Errorf("error parsing checkout created event %w", err)
		}
		if event.CheckoutID == "" {
			return fmt.Errorf("checkout created event without checkout_id")
		}
		return h.Service.HandleCheckoutCreated(ctx, event)
	default:
		logrus.Errorf("topic not allowed %s", topic)
		return fmt.Errorf("topic not allowed %s", topic)
	}
}
