package webhook

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/library"
	"github.com/alfielabs/alfie-backend/internal/logging"
	"github.com/alfielabs/alfie-backend/internal/order"
)

// Reconciler merges asynchronous render completions back onto job and
// asset rows. It is built to be called zero, one or many times per job,
// out of order, and always converge to the same final state.
type Reconciler struct {
	jobs   *order.Repo
	assets *library.Repo
	log    *logging.Logger
}

func NewReconciler(jobs *order.Repo, assets *library.Repo, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{jobs: jobs, assets: assets, log: log}
}

// Process handles one notification. A notification that matches no job
// is dropped silently: duplicate and stray deliveries are expected
// background noise, not errors.
func (r *Reconciler) Process(ctx context.Context, n *Notification) error {
	job := r.findJob(ctx, n)
	if job == nil {
		r.log.Info("webhook matched no job, dropping", "execution_id", n.ExecutionID, "status", n.Status)
		return nil
	}

	switch NormalizeStatus(n.Status) {
	case "failed":
		return r.jobs.MarkJobFailed(ctx, job.ID, n.ErrorMessage())

	case "completed":
		return r.complete(ctx, job, n)

	default:
		// intermediate progress ping; nothing durable to record
		return nil
	}
}

func (r *Reconciler) findJob(ctx context.Context, n *Notification) *order.Job {
	for _, candidate := range n.JobIDCandidates() {
		job, err := r.jobs.GetJob(ctx, candidate)
		if err == nil {
			return job
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Error("job lookup failed", "candidate", candidate, "err", err)
		}
	}
	if n.ExecutionID != "" {
		job, err := r.jobs.GetJobByExecutionID(ctx, n.ExecutionID)
		if err == nil {
			return job
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Error("job lookup by execution id failed", "execution_id", n.ExecutionID, "err", err)
		}
	}
	return nil
}

func (r *Reconciler) complete(ctx context.Context, job *order.Job, n *Notification) error {
	media := n.ExtractMedia()
	if media == nil {
		// claimed success with nothing to store: leave the job visibly
		// non-terminal rather than falsely mark it done
		r.log.Warn("completed notification without media url",
			"job_id", job.ID, "execution_id", n.ExecutionID)
		return nil
	}

	var payload order.Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(err, "decode job payload")
	}

	assetType := library.AssetImage
	if job.Type == order.JobRenderCarousel {
		assetType = library.AssetCarouselSlide
	}

	a := &library.Asset{
		UserID:  payload.UserID,
		BrandID: payload.BrandID,
		OrderID: payload.OrderID,
		JobID:   job.ID,
		Type:    assetType,
		URL:     media.URL,
	}
	if media.ExternalID != "" {
		a.ExternalID = &media.ExternalID
	}
	if len(n.Meta) > 0 {
		if raw, err := json.Marshal(n.Meta); err == nil {
			a.Metadata = raw
		}
	}

	stored, err := r.assets.Upsert(ctx, a)
	if err != nil {
		return errors.Wrap(err, "upsert asset")
	}

	result, err := json.Marshal(map[string]any{
		"asset_id":     stored.ID,
		"url":          media.URL,
		"execution_id": n.ExecutionID,
	})
	if err != nil {
		return err
	}
	return r.jobs.MarkJobCompleted(ctx, job.ID, result)
}
