package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/common"
)

func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	orderID := c.Param("order_id")
	o, err := h.Orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40404, "order not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if o.UserID != uid {
		common.Fail(c, http.StatusNotFound, 40404, "order not found")
		return
	}

	items, err := h.Orders.ListItems(c.Request.Context(), orderID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	jobs, err := h.Orders.ListJobs(c.Request.Context(), orderID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"order": o,
		"items": items,
		"jobs":  jobs,
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	j, err := h.Orders.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40405, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40405, "job not found")
		return
	}
	common.OK(c, gin.H{"job": j})
}

// ForceProcessJobs is the operator recovery path: re-dispatch every job
// stranded in queued past the staleness threshold.
func (h *Handler) ForceProcessJobs(c *gin.Context) {
	olderThan := time.Duration(h.Cfg.StaleJobMinutes) * time.Minute

	processed, failed, err := h.Builder.ForceProcessStale(c.Request.Context(), olderThan)
	if err != nil {
		h.Log.Error("force process failed", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50004, "force process failed")
		return
	}

	common.OK(c, gin.H{
		"processed": processed,
		"failed":    failed,
	})
}
