package signal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sigil-attest/go-engine/pkg/models"
)

// Metrics counts engine operations by outcome. A nil *Metrics disables
// collection.
type Metrics struct {
	generated       prometheus.Counter
	generateFailed  prometheus.Counter
	validated       *prometheus.CounterVec
	validationError prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sigil",
			Name:      "signals_generated_total",
			Help:      "Signals generated successfully.",
		}),
		generateFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sigil",
			Name:      "signal_generation_failures_total",
			Help:      "Signal generation attempts that failed.",
		}),
		validated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigil",
			Name:      "signals_validated_total",
			Help:      "Signal validations by outcome.",
		}, []string{"outcome"}),
		validationError: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sigil",
			Name:      "signal_validation_errors_total",
			Help:      "Validations aborted by operational faults.",
		}),
	}
}

func (m *Metrics) observeGenerated(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.generateFailed.Inc()
		return
	}
	m.generated.Inc()
}

func (m *Metrics) observeValidated(code models.OutcomeCode, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.validationError.Inc()
		return
	}
	m.validated.WithLabelValues(string(code)).Inc()
}
