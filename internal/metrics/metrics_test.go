package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineCounters(t *testing.T) {
	p := NewPipeline()
	p.Outcome(OutcomeGenerated)
	p.Outcome(OutcomeGenerated)
	p.Outcome(OutcomeFallback)
	p.GenerationFailure("no_json")
	p.Recall(RecallUnavailable)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.Interpretations.WithLabelValues(OutcomeGenerated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Interpretations.WithLabelValues(OutcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.GenerationFailures.WithLabelValues("no_json")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.MemoryRecall.WithLabelValues(RecallUnavailable)))
}

func TestNilPipelineIsNoop(t *testing.T) {
	var p *Pipeline
	p.Outcome(OutcomeExisting)
	p.GenerationFailure("empty")
	p.Recall(RecallHit)
}

func TestHandlerExposesCounters(t *testing.T) {
	p := NewPipeline()
	p.Outcome(OutcomeExisting)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dreamsync_interpretations_total{outcome="existing"} 1`)
}
