package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type SchedulerService struct {
	Commissions    *CommissionService
	Withdrawals    *WithdrawalService
	AutoApprove    bool
	HoldPeriod     time.Duration
	ReconcileAfter time.Duration
}

func NewSchedulerService(commissions *CommissionService, withdrawals *WithdrawalService, autoApprove bool, holdPeriod, reconcileAfter time.Duration) *SchedulerService {
	return &SchedulerService{
		Commissions:    commissions,
		Withdrawals:    withdrawals,
		AutoApprove:    autoApprove,
		HoldPeriod:     holdPeriod,
		ReconcileAfter: reconcileAfter,
	}
}

// ApproveMatured approves pending commissions that have passed the hold period.
func (s *SchedulerService) ApproveMatured(ctx context.Context) {
	count, err := s.Commissions.AutoApprove(ctx, s.HoldPeriod)
	if err != nil {
		log.WithError(err).Error("Commission auto-approval failed")
		return
	}
	if count > 0 {
		log.WithField("count", count).Info("Commissions auto-approved")
	}
}

// ReconcileWithdrawals re-drives withdrawals stuck in pending.
func (s *SchedulerService) ReconcileWithdrawals(ctx context.Context) {
	handled, err := s.Withdrawals.ReconcilePending(ctx, s.ReconcileAfter)
	if err != nil {
		log.WithError(err).Error("Withdrawal reconciliation failed")
		return
	}
	if handled > 0 {
		log.WithField("count", handled).Info("Stale withdrawals reconciled")
	}
}

// StartScheduler registers the cron jobs and starts them. Stop the returned
// cron on shutdown.
func (s *SchedulerService) StartScheduler() (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 5m", func() {
		s.ReconcileWithdrawals(context.Background())
	}); err != nil {
		return nil, err
	}

	if s.AutoApprove {
		if _, err := c.AddFunc("0 * * * *", func() {
			s.ApproveMatured(context.Background())
		}); err != nil {
			return nil, err
		}
	}

	c.Start()
	log.WithField("auto_approve", s.AutoApprove).Info("Affiliate scheduler started")
	return c, nil
}
