package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service собирает счётчики движка счёта. Реализует
// services.ScoringMetrics.
type Service struct {
	ralliesRecorded  prometheus.Counter
	ralliesRejected  *prometheus.CounterVec
	matchesCompleted prometheus.Counter
	corrections      prometheus.Counter
	submitDuration   prometheus.Histogram
}

func New(registry *prometheus.Registry) *Service {
	factory := promauto.With(registry)
	return &Service{
		ralliesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "scoring_rallies_recorded_total",
			Help: "Number of rally events accepted into match ledgers.",
		}),
		ralliesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_rallies_rejected_total",
			Help: "Number of rejected rally submissions by reason.",
		}, []string{"reason"}),
		matchesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scoring_matches_completed_total",
			Help: "Number of matches completed by the scoring engine.",
		}),
		corrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "scoring_corrections_total",
			Help: "Number of compensating rally events recorded.",
		}),
		submitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoring_submit_duration_seconds",
			Help:    "Latency of rally submission, including persistence.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (s *Service) RallyRecorded()              { s.ralliesRecorded.Inc() }
func (s *Service) RallyRejected(reason string) { s.ralliesRejected.WithLabelValues(reason).Inc() }
func (s *Service) MatchCompleted()             { s.matchesCompleted.Inc() }
func (s *Service) CorrectionRecorded()         { s.corrections.Inc() }
func (s *Service) ObserveSubmitDuration(seconds float64) {
	s.submitDuration.Observe(seconds)
}

// Handler отдаёт /metrics для скрейпа.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
