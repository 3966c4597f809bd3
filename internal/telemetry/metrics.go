package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IPNCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipn_callbacks_total",
		Help: "IPN callbacks by outcome.",
	}, []string{"outcome"})

	SignatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signature_failures_total",
		Help: "Payment parameter sets that failed signature verification.",
	}, []string{"source"})

	PaymentURLsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_urls_created_total",
		Help: "Signed gateway URLs issued.",
	})

	GatewayTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_transitions_total",
		Help: "Bank simulator state transitions.",
	}, []string{"from", "to"})

	PaymentReturns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_returns_total",
		Help: "Browser returns from the gateway by verification status.",
	}, []string{"status"})
)
