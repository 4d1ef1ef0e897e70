package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affiliate_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CommissionsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_commissions_recorded_total",
			Help: "Commissions created from confirmed purchases",
		},
	)

	CommissionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_commission_transitions_total",
			Help: "Commission status transitions by target status",
		},
		[]string{"status"},
	)

	WithdrawalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_withdrawal_transitions_total",
			Help: "Withdrawal status transitions by target status",
		},
		[]string{"status"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by source and result",
		},
		[]string{"source", "result"},
	)
)
