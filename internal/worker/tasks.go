package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/consumers"
)

// Task Types
const (
	TypeDisbursement      = "withdrawal:disburse"
	TypePurchaseConfirmed = "purchase:confirmed"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Task Creators

func NewDisbursementTask(payload consumers.DisbursementJobDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDisbursement, data), nil
}

func NewPurchaseConfirmedTask(payload consumers.PurchaseConfirmedJobDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePurchaseConfirmed, data), nil
}

// Enqueuer is the subset of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher puts affiliate jobs on the asynq queues.
type Dispatcher struct {
	Client      Enqueuer
	UniqueFor   time.Duration
	MaxRetry    int
	TaskTimeout time.Duration
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{
		Client:      client,
		UniqueFor:   10 * time.Minute,
		MaxRetry:    10,
		TaskTimeout: time.Minute,
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task, queue string) error {
	info, err := d.Client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(d.MaxRetry),
		asynq.Timeout(d.TaskTimeout),
		asynq.Unique(d.UniqueFor),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		log.WithField("type", task.Type()).Debug("Task already queued")
		return nil
	}
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"type": task.Type(), "task_id": info.ID, "queue": info.Queue}).Debug("Task enqueued")
	return nil
}

func (d *Dispatcher) EnqueueDisbursement(ctx context.Context, withdrawalID uint) error {
	task, err := NewDisbursementTask(consumers.DisbursementJobDTO{WithdrawalId: withdrawalID})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, QueueCritical)
}

func (d *Dispatcher) EnqueuePurchaseConfirmed(ctx context.Context, purchaseID uint) error {
	task, err := NewPurchaseConfirmedTask(consumers.PurchaseConfirmedJobDTO{PurchaseId: purchaseID})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, QueueDefault)
}
