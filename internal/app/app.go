package app

import (
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"affiliate-service/internal/config"
	"affiliate-service/internal/services"
	"affiliate-service/pkg/common"
)

// Services is the fully wired service graph shared by the API and the worker.
type Services struct {
	Referrals   *services.ReferralService
	Leads       *services.LeadService
	Purchases   *services.PurchaseService
	Commissions *services.CommissionService
	Withdrawals *services.WithdrawalService
	Webhooks    *services.WebhookService
	Scheduler   *services.SchedulerService
}

// NewServices wires every service. cache and tasks may be nil.
func NewServices(cfg *config.Config, db *gorm.DB, cache redis.Cmdable, tasks services.TaskEnqueuer) *Services {
	gateway := services.NewSingaPayService(cfg.SingaPay.BaseURL, cfg.SingaPay.APIKey, common.NewHTTPClient(cfg.SingaPay.Timeout))

	referrals := services.NewReferralService(db, cache, cfg.SlugCacheTTL, cfg.MaxSlugChanges)
	leads := services.NewLeadService(db, referrals)
	purchases := services.NewPurchaseService(db)
	commissions := services.NewCommissionService(db, purchases, referrals, cfg.CommissionRate, cfg.MinimumWithdrawal)
	withdrawals := services.NewWithdrawalService(db, commissions, gateway, tasks, cfg.MinimumWithdrawal)
	webhooks := services.NewWebhookService(db, withdrawals, purchases, commissions, tasks, cfg.SingaPay.WebhookSecret, cfg.PaymentWebhookSecret)
	scheduler := services.NewSchedulerService(commissions, withdrawals, cfg.AutoApproveCommissions, cfg.CommissionHoldPeriod, cfg.ReconcileAfter)

	return &Services{
		Referrals:   referrals,
		Leads:       leads,
		Purchases:   purchases,
		Commissions: commissions,
		Withdrawals: withdrawals,
		Webhooks:    webhooks,
		Scheduler:   scheduler,
	}
}

// LoadEnv loads the first .env file found among paths. A missing file is not
// an error; the process environment is used as is.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			log.WithField("file", p).Info("Loaded environment file")
			return
		}
	}
	log.Info("No .env file found, using system environment variables")
}

// Cache narrows a possibly nil client to the interface services expect.
func Cache(client *redis.Client) redis.Cmdable {
	if client == nil {
		return nil
	}
	return client
}
