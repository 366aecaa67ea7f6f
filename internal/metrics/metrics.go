package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeExisting  = "existing"
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"

	RecallHit         = "hit"
	RecallEmpty       = "empty"
	RecallUnavailable = "unavailable"
)

// Pipeline counts how interpretation requests resolve. A nil *Pipeline is a valid no-op.
type Pipeline struct {
	registry           *prometheus.Registry
	Interpretations    *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	MemoryRecall       *prometheus.CounterVec
}

func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	p := &Pipeline{
		registry: reg,
		Interpretations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamsync",
			Name:      "interpretations_total",
			Help:      "Interpretation requests by outcome.",
		}, []string{"outcome"}),
		GenerationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamsync",
			Name:      "generation_failures_total",
			Help:      "Recoverable generation or validation failures by status.",
		}, []string{"status"}),
		MemoryRecall: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamsync",
			Name:      "memory_recall_total",
			Help:      "Semantic memory lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		p.Interpretations,
		p.GenerationFailures,
		p.MemoryRecall,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Pipeline) Outcome(outcome string) {
	if p != nil {
		p.Interpretations.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) GenerationFailure(status string) {
	if p != nil {
		p.GenerationFailures.WithLabelValues(status).Inc()
	}
}

func (p *Pipeline) Recall(result string) {
	if p != nil {
		p.MemoryRecall.WithLabelValues(result).Inc()
	}
}

func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
