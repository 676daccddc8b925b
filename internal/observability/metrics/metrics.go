package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics expone contadores/histogramas del ledger de turnos.
type BookingMetrics struct {
	claimsTotal   *prometheus.CounterVec
	claimDuration *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
}

const (
	ClaimWon        = "won"
	ClaimConflict   = "conflict"
	ClaimNotOffered = "not_offered"
	ClaimInvalid    = "invalid"
	ClaimError      = "error"
)

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetsched",
			Subsystem: "booking",
			Name:      "claims_total",
			Help:      "Slot claim attempts by result",
		}, []string{"result"}),
		claimDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vetsched",
			Subsystem: "booking",
			Name:      "claim_duration_seconds",
			Help:      "Latency of the atomic slot claim",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetsched",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.claimsTotal, m.claimDuration, m.transitions)
	return m
}

func (m *BookingMetrics) ObserveClaim(result string, seconds float64) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(result).Inc()
	m.claimDuration.WithLabelValues(result).Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}
