package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/ai"
	"github.com/alfielabs/alfie-backend/internal/carousel"
	"github.com/alfielabs/alfie-backend/internal/config"
	"github.com/alfielabs/alfie-backend/internal/conversation"
	"github.com/alfielabs/alfie-backend/internal/db"
	"github.com/alfielabs/alfie-backend/internal/logging"
	"github.com/alfielabs/alfie-backend/internal/models"
	"github.com/alfielabs/alfie-backend/internal/order"
	"github.com/alfielabs/alfie-backend/internal/quota"
	"github.com/alfielabs/alfie-backend/internal/render"
	"github.com/alfielabs/alfie-backend/internal/store/rabbitmq"
	"github.com/alfielabs/alfie-backend/internal/store/redisstore"
)

const (
	costImage    = 1
	costCarousel = 2
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

type worker struct {
	jobs      *order.Repo
	ledger    *quota.Ledger
	generator *carousel.Generator
	renderer  render.Client
	gdb       *gorm.DB
	log       *logging.Logger
}

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb := db.Connect(cfg.DBDSN)

	cache := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// provider registry, routed by AI_PROVIDER; openai covers every
	// OpenAI-compatible endpoint via OPENAI_BASE_URL
	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if model == "" {
			model = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})

	providerName := os.Getenv("AI_PROVIDER")
	if providerName == "" {
		providerName = "openai"
	}
	provider, err := reg.Get(context.Background(), providerName, cfg.OpenAIModel)
	if err != nil {
		log.Fatal("ai provider", "err", err)
	}

	w := &worker{
		jobs:      order.NewRepo(gdb),
		ledger:    quota.NewLedger(gdb, cache, cfg.DefaultWoofsLimit, log),
		generator: carousel.NewGenerator(provider, log),
		renderer:  render.NewHTTPClient(cfg.RenderBaseURL, cfg.RenderAPIKey, cfg.RenderCallback),
		gdb:       gdb,
		log:       log,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", "err", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("declare topology", "err", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", "err", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					w.log.Warn("bad message", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := w.handleJob(ctx, m.JobID); err != nil {
					w.log.Error("job failed", "worker", workerID, "job", m.JobID, "cost", time.Since(start), "err", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					w.log.Warn("ack failed", "worker", workerID, "job", m.JobID, "err", err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			deliveries <- d
		}
	}
}

// handleJob drives one queued job to submission: consume Woofs, build the
// render spec (generating the carousel plan when needed) and hand it to the
// render backend. Completion itself arrives later over the webhook.
func (w *worker) handleJob(ctx context.Context, jobID string) error {
	_ = w.jobs.MarkJobRunning(ctx, jobID)

	j, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == order.JobCompleted || j.Status == order.JobFailed {
		// redelivered after terminal state, nothing to do
		return nil
	}

	var payload order.Payload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		_ = w.jobs.MarkJobFailed(ctx, jobID, "corrupt payload: "+err.Error())
		return nil
	}

	var user models.User
	if err := w.gdb.WithContext(ctx).First(&user, payload.UserID).Error; err != nil {
		return err
	}
	unlimited := user.Role == models.RoleAdmin

	cost := costImage
	reason := "render-image"
	if j.Type == order.JobRenderCarousel {
		cost = costCarousel
		reason = "render-carousel"
	}

	_, err = w.ledger.Consume(ctx, payload.UserID, unlimited, payload.BrandID, cost, reason, map[string]any{
		"job_id":   jobID,
		"order_id": payload.OrderID,
	})
	if err != nil {
		var insufficient *quota.InsufficientError
		if errors.As(err, &insufficient) {
			_ = w.jobs.MarkJobFailed(ctx, jobID, insufficient.Error())
			return nil // consumed delivery, job is terminally failed
		}
		return err
	}

	execID, err := w.submit(ctx, j, payload)
	if err != nil {
		_ = w.jobs.MarkJobFailed(ctx, jobID, err.Error())
		return nil
	}

	if err := w.jobs.SetJobExecution(ctx, jobID, execID); err != nil {
		return err
	}

	w.log.Info("job submitted", "job", jobID, "type", j.Type, "execution_id", execID)
	return nil
}

func (w *worker) submit(ctx context.Context, j *order.Job, payload order.Payload) (string, error) {
	switch j.Type {
	case order.JobRenderImage:
		if payload.ImageBrief == nil {
			return "", fmt.Errorf("image job %s has no brief", j.ID)
		}
		return w.renderer.SubmitImage(ctx, render.ImageRequest{
			JobID:   j.ID,
			BrandID: payload.BrandID,
			Brief:   *payload.ImageBrief,
		})

	case order.JobRenderCarousel:
		if payload.CarouselBrief == nil {
			return "", fmt.Errorf("carousel job %s has no brief", j.ID)
		}
		plan, err := w.generator.Generate(ctx, carousel.Request{
			Prompt:     carouselPrompt(payload.CarouselBrief),
			BrandKit:   w.brandKit(ctx, payload.BrandID),
			SlideCount: payload.CarouselBrief.SlideCount,
		})
		if err != nil {
			return "", err
		}
		return w.renderer.SubmitCarousel(ctx, render.CarouselRequest{
			JobID:   j.ID,
			BrandID: payload.BrandID,
			Plan:    plan,
		})

	default:
		return "", fmt.Errorf("unknown job type %q", j.Type)
	}
}

func carouselPrompt(b *conversation.CarouselBrief) string {
	if b.Tone == "" {
		return b.Subject
	}
	return b.Subject + " (ton : " + b.Tone + ")"
}

// brandKit loads the brand's kit as a loose map; a missing or corrupt kit
// just means default globals.
func (w *worker) brandKit(ctx context.Context, brandID string) map[string]any {
	var brand models.Brand
	if err := w.gdb.WithContext(ctx).First(&brand, "id = ?", brandID).Error; err != nil {
		return nil
	}
	if len(brand.Kit) == 0 {
		return nil
	}
	var kit map[string]any
	if err := json.Unmarshal(brand.Kit, &kit); err != nil {
		w.log.Warn("corrupt brand kit", "brand", brandID, "err", err)
		return nil
	}
	return kit
}
