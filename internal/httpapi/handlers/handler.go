package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/config"
	"github.com/alfielabs/alfie-backend/internal/conversation"
	"github.com/alfielabs/alfie-backend/internal/httpapi/middleware"
	"github.com/alfielabs/alfie-backend/internal/library"
	"github.com/alfielabs/alfie-backend/internal/logging"
	"github.com/alfielabs/alfie-backend/internal/order"
	"github.com/alfielabs/alfie-backend/internal/quota"
	"github.com/alfielabs/alfie-backend/internal/webhook"
)

type Handler struct {
	DB  *gorm.DB
	Cfg config.Config
	Log *logging.Logger

	ConvSvc    *conversation.Service
	Builder    *order.Builder
	Orders     *order.Repo
	Ledger     *quota.Ledger
	Assets     *library.Repo
	Reconciler *webhook.Reconciler
}

func NewHandler(
	db *gorm.DB,
	cfg config.Config,
	log *logging.Logger,
	convSvc *conversation.Service,
	builder *order.Builder,
	orders *order.Repo,
	ledger *quota.Ledger,
	assets *library.Repo,
	reconciler *webhook.Reconciler,
) *Handler {
	return &Handler{
		DB:         db,
		Cfg:        cfg,
		Log:        log,
		ConvSvc:    convSvc,
		Builder:    builder,
		Orders:     orders,
		Ledger:     ledger,
		Assets:     assets,
		Reconciler: reconciler,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
