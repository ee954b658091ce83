package backend

import (
	"context"
	"testing"

	"testcase-workflow-be/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct {
	DataSource
	err error
}

func (f failingSource) AnalyzeRequirements(ctx context.Context, sessionId, prompt string) (*AnalysisResult, error) {
	return nil, f.err
}

func TestInstrumentedRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	fixtures := newFixtures(t)

	ok := NewInstrumented(fixtures, metrics, logger.NewNopLogger())
	_, err := ok.FetchContext(context.Background(), "s-1", "p")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("fetch_context", "ok")))

	failing := NewInstrumented(failingSource{DataSource: fixtures, err: &APIError{Status: 500, Message: "boom"}}, metrics, logger.NewNopLogger())
	_, err = failing.AnalyzeRequirements(context.Background(), "s-1", "p")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("analyze_requirements", "api_error")))

	transport := NewInstrumented(failingSource{DataSource: fixtures, err: &TransportError{Op: "x", Err: context.DeadlineExceeded}}, metrics, logger.NewNopLogger())
	_, err = transport.AnalyzeRequirements(context.Background(), "s-1", "p")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("analyze_requirements", "transport_error")))
}
