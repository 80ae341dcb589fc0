package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "botflow"

// Message outcomes.
const (
	OutcomeReplied  = "replied"
	OutcomeRejected = "rejected"
	OutcomeEnded    = "ended"
	OutcomeTransfer = "transfer"
	OutcomeFailed   = "failed"
)

// Metrics groups all Prometheus instruments used by the engine.
type Metrics struct {
	Messages        *prometheus.CounterVec
	StageExecutions *prometheus.CounterVec
	ExternalCalls   *prometheus.CounterVec
	ExternalLatency *prometheus.HistogramVec
	ChainFailures   *prometheus.CounterVec
	ProcessLatency  prometheus.Histogram
	ChainIterations prometheus.Histogram
}

// NewMetrics registers the instruments with reg. A nil reg uses the
// process-wide default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Inbound messages processed, by bot and outcome.",
		}, []string{"bot_id", "outcome"}),
		StageExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Stages executed, by node type.",
		}, []string{"node_type"}),
		ExternalCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Outbound http_request and ai_response calls, by kind and result.",
		}, []string{"kind", "result"}),
		ExternalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of outbound calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		ChainFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_failures_total",
			Help:      "Executions aborted by an engine error, by reason.",
		}, []string{"reason"}),
		ProcessLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Time to process one inbound message, delays included.",
			Buckets:   prometheus.DefBuckets,
		}),
		ChainIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_iterations",
			Help:      "Stages executed per inbound message.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 25},
		}),
	}
}

// Hooks returns lifecycle hooks that feed the instruments.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) {
			m.StageExecutions.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnExternalCall: func(_ context.Context, e *domain.ExternalCallEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.ExternalCalls.WithLabelValues(e.Kind, result).Inc()
			m.ExternalLatency.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
		},
		OnMessageProcessed: func(_ context.Context, e *domain.MessageEvent) {
			m.Messages.WithLabelValues(e.BotID, Outcome(e)).Inc()
			m.ProcessLatency.Observe(e.Duration.Seconds())
			m.ChainIterations.Observe(float64(e.Iterations))
			if e.Err != nil {
				m.ChainFailures.WithLabelValues(FailureReason(e.Err)).Inc()
			}
		},
	}
}

// Outcome classifies a processed message.
func Outcome(e *domain.MessageEvent) string {
	switch {
	case e.Err != nil:
		return OutcomeFailed
	case e.Rejected:
		return OutcomeRejected
	case e.Transfer:
		return OutcomeTransfer
	case e.Ended:
		return OutcomeEnded
	default:
		return OutcomeReplied
	}
}

// FailureReason maps an engine error to a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrChainOverrun):
		return "chain_overrun"
	case errors.Is(err, domain.ErrUnknownStage):
		return "unknown_stage"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// Handler serves the metrics gathered by g. A nil g serves the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
