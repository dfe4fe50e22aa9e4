package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/conversation"
	"github.com/alfielabs/alfie-backend/internal/logging"
)

// Dispatcher hands a queued job id to the worker queue. Dispatch is
// best-effort: the durable commit point is the job row.
type Dispatcher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// SessionLink is the slice of the conversation store the builder needs
// to enforce one order per session.
type SessionLink interface {
	LinkOrder(ctx context.Context, sessionID, orderID string) (bool, error)
	LinkedOrderID(ctx context.Context, sessionID string) (*string, error)
}

type Builder struct {
	repo       *Repo
	sessions   SessionLink
	dispatcher Dispatcher
	log        *logging.Logger
}

func NewBuilder(repo *Repo, sessions SessionLink, dispatcher Dispatcher, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.Nop()
	}
	return &Builder{repo: repo, sessions: sessions, dispatcher: dispatcher, log: log}
}

type BuildInput struct {
	UserID    uint64
	BrandID   string
	SessionID string
	Campaign  string
	// order already linked to the session, if any
	ExistingOrderID *string
	Context         conversation.Context
}

type BuildResult struct {
	Order *Order
	Jobs  []Job
	// false when the session already had an order
	Created bool
}

// Build materializes the order, its items and its jobs from a confirmed
// session. Idempotent under retries: the session link dedups the order,
// type checks dedup items, the (order, type, unit) index dedups jobs.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*BuildResult, error) {
	if in.ExistingOrderID != nil && *in.ExistingOrderID != "" {
		return b.existingSet(ctx, *in.ExistingOrderID, false)
	}

	raw, err := json.Marshal(in.Context)
	if err != nil {
		return nil, errors.Wrap(err, "freeze context")
	}

	o := &Order{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		BrandID:   in.BrandID,
		SessionID: in.SessionID,
		Campaign:  in.Campaign,
		Context:   raw,
		Status:    StatusPending,
	}
	if err := b.repo.CreateOrder(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	linked, err := b.sessions.LinkOrder(ctx, in.SessionID, o.ID)
	if err != nil {
		return nil, err
	}
	if !linked {
		// lost the race: a concurrent build already attached an order;
		// drop ours and return the winner's set
		if dErr := b.repo.DeleteOrder(ctx, o.ID); dErr != nil {
			b.log.Warn("orphan order cleanup failed", "order_id", o.ID, "err", dErr)
		}
		winner, err := b.sessions.LinkedOrderID(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, errors.New("session link lost but no winning order found")
		}
		return b.existingSet(ctx, *winner, false)
	}

	jobs, err := b.materialize(ctx, o, in.Context)
	if err != nil {
		return nil, err
	}

	if err := b.repo.SetOrderStatus(ctx, o.ID, StatusProcessing); err != nil {
		return nil, err
	}
	o.Status = StatusProcessing

	b.dispatch(ctx, jobs)
	return &BuildResult{Order: o, Jobs: jobs, Created: true}, nil
}

func (b *Builder) existingSet(ctx context.Context, orderID string, created bool) (*BuildResult, error) {
	o, err := b.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	jobs, err := b.repo.ListJobs(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Order: o, Jobs: jobs, Created: created}, nil
}

// materialize inserts the missing items and jobs for the frozen brief.
// Computing the full desired set and inserting only the delta is what
// makes this safe to call any number of times.
func (b *Builder) materialize(ctx context.Context, o *Order, c conversation.Context) ([]Job, error) {
	var jobs []Job

	if c.NumImages > 0 {
		item, err := b.ensureItem(ctx, o, ItemImage, c.NumImages, c.Images)
		if err != nil {
			return nil, err
		}
		for i := 0; i < c.NumImages; i++ {
			brief := conversation.ImageBrief{}
			if i < len(c.Images) {
				brief = c.Images[i]
			}
			j, err := b.ensureJob(ctx, o, item, JobRenderImage, i, Payload{ImageBrief: &brief})
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, *j)
		}
	}

	if c.NumCarousels > 0 {
		item, err := b.ensureItem(ctx, o, ItemCarousel, c.NumCarousels, c.Carousels)
		if err != nil {
			return nil, err
		}
		for i := 0; i < c.NumCarousels; i++ {
			brief := conversation.CarouselBrief{}
			if i < len(c.Carousels) {
				brief = c.Carousels[i]
			}
			j, err := b.ensureJob(ctx, o, item, JobRenderCarousel, i, Payload{CarouselBrief: &brief})
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, *j)
		}
	}

	return jobs, nil
}

func (b *Builder) ensureItem(ctx context.Context, o *Order, t ItemType, count int, briefs any) (*OrderItem, error) {
	raw, err := json.Marshal(briefs)
	if err != nil {
		return nil, errors.Wrap(err, "encode briefs")
	}
	item, err := b.repo.CreateItemIfMissing(ctx, &OrderItem{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		Type:    t,
		Count:   count,
		Briefs:  raw,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "ensure %s item", t)
	}
	return item, nil
}

func (b *Builder) ensureJob(ctx context.Context, o *Order, item *OrderItem, t JobType, unit int, payload Payload) (*Job, error) {
	payload.UserID = o.UserID
	payload.BrandID = o.BrandID
	payload.OrderID = o.ID
	payload.OrderItemID = item.ID
	payload.UnitIndex = unit

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job, _, err := b.repo.CreateJobIfMissing(ctx, &Job{
		ID:          id,
		UserID:      o.UserID,
		OrderID:     o.ID,
		OrderItemID: item.ID,
		Type:        t,
		UnitIndex:   unit,
		Status:      JobQueued,
		Payload:     raw,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "ensure %s job %d", t, unit)
	}
	return job, nil
}

// dispatch is fire-and-forget: a failed publish leaves the job queued for
// the staleness sweep to pick up.
func (b *Builder) dispatch(ctx context.Context, jobs []Job) {
	if b.dispatcher == nil {
		return
	}
	for _, j := range jobs {
		if j.Status != JobQueued {
			continue
		}
		if err := b.dispatcher.PublishJob(ctx, j.ID); err != nil {
			b.log.Warn("job dispatch failed, will be swept later", "job_id", j.ID, "err", err)
		}
	}
}

// ForceProcessStale re-publishes jobs stranded in queued past the
// threshold. Operator-facing recovery for lost dispatches.
func (b *Builder) ForceProcessStale(ctx context.Context, olderThan time.Duration) (processed, failed int, err error) {
	jobs, err := b.repo.ListStaleQueued(ctx, olderThan, 0)
	if err != nil {
		return 0, 0, err
	}
	for _, j := range jobs {
		if b.dispatcher == nil {
			failed++
			continue
		}
		if pErr := b.dispatcher.PublishJob(ctx, j.ID); pErr != nil {
			b.log.Warn("force process publish failed", "job_id", j.ID, "err", pErr)
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}
