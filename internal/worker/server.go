package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/consumers"
)

type Worker struct {
	Processor *consumers.AffiliateProcessor
}

func NewWorker(processor *consumers.AffiliateProcessor) *Worker {
	return &Worker{
		Processor: processor,
	}
}

func skipIfPermanent(err error) error {
	if errors.Is(err, consumers.ErrPermanent) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (w *Worker) HandleDisbursement(ctx context.Context, t *asynq.Task) error {
	var p consumers.DisbursementJobDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return skipIfPermanent(w.Processor.ProcessDisbursement(ctx, p))
}

func (w *Worker) HandlePurchaseConfirmed(ctx context.Context, t *asynq.Task) error {
	var p consumers.PurchaseConfirmedJobDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return skipIfPermanent(w.Processor.ProcessPurchaseConfirmed(ctx, p))
}

func NewServeMux(processor *consumers.AffiliateProcessor) *asynq.ServeMux {
	worker := NewWorker(processor)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDisbursement, worker.HandleDisbursement)
	mux.HandleFunc(TypePurchaseConfirmed, worker.HandlePurchaseConfirmed)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, processor *consumers.AffiliateProcessor) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				"low":         1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.WithError(err).WithFields(log.Fields{
					"type":      task.Type(),
					"retried":   retried,
					"max_retry": maxRetry,
				}).Warn("Task failed")
			}),
		},
	)

	if err := srv.Run(NewServeMux(processor)); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
