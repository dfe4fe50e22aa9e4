package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/webhook"
)

// RenderWebhook receives completion callbacks from render backends.
// Unknown jobs, duplicates and late deliveries are all acknowledged with
// 200: retry storms from the backend help nobody.
func (h *Handler) RenderWebhook(c *gin.Context) {
	if h.Cfg.WebhookToken != "" && c.Query("token") != h.Cfg.WebhookToken {
		common.Fail(c, http.StatusUnauthorized, 40103, "unauthorized")
		return
	}

	var n webhook.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Reconciler.Process(c.Request.Context(), &n); err != nil {
		h.Log.Error("webhook reconciliation failed", "execution_id", n.ExecutionID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50005, "reconciliation failed")
		return
	}

	common.OK(c, gin.H{"received": true})
}
