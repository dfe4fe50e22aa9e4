package order

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) DeleteOrder(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Order{}, "id = ?", id).Error
}

func (r *Repo) SetOrderStatus(ctx context.Context, id string, status Status) error {
	return r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repo) ListItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CreateItemIfMissing inserts the item unless one of its type already
// exists on the order. Returns the surviving row either way.
func (r *Repo) CreateItemIfMissing(ctx context.Context, item *OrderItem) (*OrderItem, error) {
	err := r.db.WithContext(ctx).Create(item).Error
	if err == nil {
		return item, nil
	}
	var existing OrderItem
	if gErr := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", item.OrderID, item.Type).
		First(&existing).Error; gErr == nil {
		return &existing, nil
	} else if !errors.Is(gErr, gorm.ErrRecordNotFound) {
		return nil, gErr
	}
	return nil, err
}

// CreateJobIfMissing relies on the (order, type, unit) unique index:
// a duplicate insert loses to the already-queued job.
func (r *Repo) CreateJobIfMissing(ctx context.Context, job *Job) (*Job, bool, error) {
	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}
	var existing Job
	if gErr := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND unit_index = ?", job.OrderID, job.Type, job.UnitIndex).
		First(&existing).Error; gErr == nil {
		return &existing, false, nil
	} else if !errors.Is(gErr, gorm.ErrRecordNotFound) {
		return nil, false, gErr
	}
	return nil, false, err
}

func (r *Repo) ListJobs(ctx context.Context, orderID string) ([]Job, error) {
	var jobs []Job
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("type, unit_index").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repo) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetJobByExecutionID(ctx context.Context, execID string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "execution_id = ?", execID).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// SetJobExecution records the render backend's correlation id.
func (r *Repo) SetJobExecution(ctx context.Context, id, execID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Update("execution_id", execID).Error
}

func (r *Repo) MarkJobRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobCompleted(ctx context.Context, id string, result datatypes.JSON) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobCompleted,
			"result": result,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// ListStaleQueued finds jobs stranded in queued past the staleness
// threshold, the recovery input for force-process.
func (r *Repo) ListStaleQueued(ctx context.Context, olderThan time.Duration, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-olderThan)
	var jobs []Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", JobQueued, cutoff).
		Order("created_at").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
