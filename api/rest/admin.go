package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questtoken/audit"
	"github.com/kasuganosora/questtoken/game/quest"
	"github.com/kasuganosora/questtoken/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by the AdminKey middleware.
type AdminHandler struct {
	svc    *quest.Service
	sched  *scheduler.Scheduler
	ledger *audit.Service
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler. ledger may be nil, which disables
// the history endpoint.
func NewAdminHandler(svc *quest.Service, sched *scheduler.Scheduler, ledger *audit.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, sched: sched, ledger: ledger, logger: logger}
}

// Metrics returns instance counts and scheduler tasks.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instances":       h.svc.Count(),
		"templates":       len(h.svc.Registry().All()),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// Save queues every unsaved instance for the snapshot writer.
// POST /api/admin/save
func (h *AdminHandler) Save(c *gin.Context) {
	n := h.svc.Snapshot()
	h.logger.Info("admin triggered snapshot", zap.Int("queued", n))
	c.JSON(http.StatusOK, gin.H{"ok": true, "queued": n})
}

// RemoveInstance deletes an instance, its token attachment and its saved row.
// DELETE /api/admin/instances/:id
func (h *AdminHandler) RemoveInstance(c *gin.Context) {
	id := c.Param("id")
	err := h.svc.Remove(c.Request.Context(), id)
	if errors.Is(err, quest.ErrUnknownInstance) {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	if err != nil {
		h.logger.Error("remove instance failed", zap.String("instance_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove failed"})
		return
	}
	h.logger.Info("admin removed instance", zap.String("instance_id", id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// History returns the recorded lifecycle events of an instance.
// GET /api/admin/instances/:id/history
func (h *AdminHandler) History(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "audit ledger disabled"})
		return
	}
	logs, err := h.ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("history query failed", zap.String("instance_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": logs, "count": len(logs)})
}

// ListSchedulerTasks returns all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}
