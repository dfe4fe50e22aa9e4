package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/models"
)

type createBrandReq struct {
	Name       string         `json:"name" binding:"required"`
	WoofsLimit int            `json:"woofs_limit"`
	Kit        map[string]any `json:"kit"`
}

func (h *Handler) CreateBrand(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createBrandReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.WoofsLimit <= 0 {
		req.WoofsLimit = h.Cfg.DefaultWoofsLimit
	}

	brand := models.Brand{
		ID:         uuid.NewString(),
		UserID:     uid,
		Name:       req.Name,
		WoofsLimit: req.WoofsLimit,
	}
	if req.Kit != nil {
		if raw, err := json.Marshal(req.Kit); err == nil {
			brand.Kit = raw
		}
	}

	if err := h.DB.Create(&brand).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create brand")
		return
	}
	common.OK(c, brand)
}

func (h *Handler) GetBrand(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var brand models.Brand
	if err := h.DB.First(&brand, "id = ?", c.Param("brand_id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "brand not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	if brand.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "brand not found")
		return
	}
	common.OK(c, brand)
}

func (h *Handler) ListBrands(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var brands []models.Brand
	if err := h.DB.Where("user_id = ?", uid).Order("created_at").Find(&brands).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, gin.H{"brands": brands})
}
