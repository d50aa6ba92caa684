package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCountsPerStage(t *testing.T) {
	s := New()

	s.InputHandled("tokenize")
	s.InputHandled("tokenize")
	s.OutputRouted("tokenize")
	s.BackpressureEngaged("tally")

	assert.Equal(t, 2.0, testutil.ToFloat64(s.inputs.WithLabelValues("tokenize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.outputs.WithLabelValues("tokenize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.backpressure.WithLabelValues("tally")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.inputs.WithLabelValues("tally")))
}

func TestHandlerExposesCounters(t *testing.T) {
	s := New()
	s.InputHandled("tokenize")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `phasegrid_inputs_total{stage="tokenize"} 1`)
}
