package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReferralCodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_referral_codes_issued_total",
			Help: "Referral codes persisted by this process",
		},
	)

	// reason is "self" when a concurrent request for the same user won, and
	// "foreign" when the random candidate belonged to another user.
	ReferralCodeConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_referral_code_conflicts_total",
			Help: "Unique conflicts while issuing referral codes",
		},
		[]string{"reason"},
	)

	ReferralTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_referral_transitions_total",
			Help: "Referral status transitions by target status and outcome",
		},
		[]string{"status", "outcome"},
	)

	RemindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_reminders_total",
			Help: "Class reminders by type and result",
		},
		[]string{"type", "result"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_rate_limit_rejections_total",
			Help: "Requests rejected by the anonymous submission rate limiter",
		},
	)

	ReportCardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_report_card_transitions_total",
			Help: "Report card status changes by target status",
		},
		[]string{"status"},
	)
)
