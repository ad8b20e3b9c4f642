package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_codes_issued_total",
			Help: "Total number of confirmation codes issued",
		},
	)

	otpConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_codes_consumed_total",
			Help: "Total number of confirmation code redemption attempts",
		},
		[]string{"result"},
	)

	otpRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_codes_revoked_total",
			Help: "Total number of confirmation codes revoked after too many wrong codes",
		},
	)

	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"result"},
	)

	paymentReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Total number of payment confirmations processed",
		},
		[]string{"gateway", "result"},
	)
)
