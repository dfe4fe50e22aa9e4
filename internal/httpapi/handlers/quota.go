package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/quota"
)

func (h *Handler) GetQuotaSummary(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	s, err := h.Ledger.GetSummary(c.Request.Context(), uid, c.Param("brand_id"))
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrForbidden):
			common.Fail(c, http.StatusForbidden, 40302, "forbidden")
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40402, "brand not found")
		default:
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		}
		return
	}
	common.OK(c, s)
}
