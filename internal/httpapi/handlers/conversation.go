package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/conversation"
	"github.com/alfielabs/alfie-backend/internal/models"
	"github.com/alfielabs/alfie-backend/internal/order"
)

type createConversationReq struct {
	BrandID string `json:"brand_id" binding:"required"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// brand must exist and belong to the caller
	var brand models.Brand
	if err := h.DB.First(&brand, "id = ?", req.BrandID).Error; err != nil || brand.UserID != uid {
		common.Fail(c, http.StatusNotFound, 40402, "brand not found")
		return
	}

	sess, err := h.ConvSvc.CreateSession(c.Request.Context(), uid, req.BrandID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create conversation")
		return
	}

	common.OK(c, gin.H{
		"session_id": sess.ID,
		"state":      sess.State,
		"question":   conversation.NextQuestion(sess.State, conversation.Context{}),
	})
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.ConvSvc.GetSession(c.Request.Context(), uid, c.Param("session_id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, sess)
}

type postMessageReq struct {
	Message string `json:"message" binding:"required"`
}

// PostConversationMessage drives one turn of the brief-collection state
// machine. A confirmed turn also materializes the order and its jobs.
func (h *Handler) PostConversationMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sessionID := c.Param("session_id")
	turn, err := h.ConvSvc.PostMessage(c.Request.Context(), uid, sessionID, req.Message)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		h.Log.Error("conversation turn failed", "session_id", sessionID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	resp := gin.H{
		"reply": turn.Reply,
		"state": turn.State,
	}

	if turn.Confirmed {
		ctx, err := conversation.DecodeContext(turn.Session.Context)
		if err != nil {
			h.Log.Error("frozen context decode failed", "session_id", sessionID, "err", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		result, err := h.Builder.Build(c.Request.Context(), order.BuildInput{
			UserID:          uid,
			BrandID:         turn.Session.BrandID,
			SessionID:       sessionID,
			ExistingOrderID: turn.Session.OrderID,
			Context:         ctx,
		})
		if err != nil {
			h.Log.Error("order build failed", "session_id", sessionID, "err", err)
			common.Fail(c, http.StatusInternalServerError, 50003, "failed to create order")
			return
		}
		resp["state"] = conversation.StateGenerating
		resp["order_id"] = result.Order.ID
		resp["jobs"] = len(result.Jobs)
	}

	common.OK(c, resp)
}

func (h *Handler) ListConversationMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.Param("session_id")
	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.ConvSvc.ListMessages(c.Request.Context(), uid, sessionID, limit, beforeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}
