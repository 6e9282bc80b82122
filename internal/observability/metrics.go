package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "eligibility_engine_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// FraudChecksRecorded tracks ledger writes by check type and status
	FraudChecksRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_engine_fraud_checks_recorded_total",
			Help: "Number of fraud checks written to the ledger",
		},
		[]string{"type", "status"},
	)

	// EligibilityDecisions tracks resolver outcomes by tier
	EligibilityDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_engine_decisions_total",
			Help: "Number of eligibility decisions by granted tier",
		},
		[]string{"tier"},
	)

	// SMSSendAttempts tracks SMS dispatch attempts by outcome
	SMSSendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_engine_sms_send_attempts_total",
			Help: "Number of SMS dispatch attempts",
		},
		[]string{"outcome"},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eligibility_engine_active_connections",
			Help: "Number of active connections",
		},
	)

	// PhoneVerifyAttempts tracks code verification attempts by outcome
	PhoneVerifyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_engine_phone_verify_attempts_total",
			Help: "Number of phone code verification attempts",
		},
		[]string{"outcome"},
	)
)
