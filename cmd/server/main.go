package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfielabs/alfie-backend/internal/ai"
	"github.com/alfielabs/alfie-backend/internal/config"
	"github.com/alfielabs/alfie-backend/internal/conversation"
	"github.com/alfielabs/alfie-backend/internal/db"
	"github.com/alfielabs/alfie-backend/internal/httpapi"
	"github.com/alfielabs/alfie-backend/internal/httpapi/handlers"
	"github.com/alfielabs/alfie-backend/internal/library"
	"github.com/alfielabs/alfie-backend/internal/logging"
	"github.com/alfielabs/alfie-backend/internal/order"
	"github.com/alfielabs/alfie-backend/internal/quota"
	"github.com/alfielabs/alfie-backend/internal/store/rabbitmq"
	"github.com/alfielabs/alfie-backend/internal/store/redisstore"
	"github.com/alfielabs/alfie-backend/internal/webhook"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatal("migrate", "err", err)
	}

	cache := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatal("rabbit connect", "err", err)
	}
	defer publisher.Close()

	provider := ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	scorer := conversation.NewAITopicScorer(provider)

	convRepo := conversation.NewRepo(gdb)
	convSvc := conversation.NewService(convRepo, scorer, log)

	orderRepo := order.NewRepo(gdb)
	builder := order.NewBuilder(orderRepo, convRepo, publisher, log)

	ledger := quota.NewLedger(gdb, cache, cfg.DefaultWoofsLimit, log)

	assetRepo := library.NewRepo(gdb)
	reconciler := webhook.NewReconciler(orderRepo, assetRepo, log)

	h := handlers.NewHandler(gdb, cfg, log, convSvc, builder, orderRepo, ledger, assetRepo, reconciler)
	router := httpapi.NewRouter(h, cfg, log)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
