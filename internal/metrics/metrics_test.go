package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordersIncrement(t *testing.T) {
	before := testutil.ToFloat64(runs.WithLabelValues("@@metrics-test", "completed"))
	RecordRun("@@metrics-test", "completed", 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(runs.WithLabelValues("@@metrics-test", "completed")))

	beforeOpen := testutil.ToFloat64(opens.WithLabelValues("payments", "/pay", "ok"))
	RecordOpen("payments", "/pay", "ok")
	assert.Equal(t, beforeOpen+1, testutil.ToFloat64(opens.WithLabelValues("payments", "/pay", "ok")))

	beforeStmt := testutil.ToFloat64(statements.WithLabelValues("open"))
	RecordStatement("open")
	assert.Equal(t, beforeStmt+1, testutil.ToFloat64(statements.WithLabelValues("open")))

	beforeRec := testutil.ToFloat64(recursions.WithLabelValues("@@metrics-test"))
	RecordRecursion("@@metrics-test")
	assert.Equal(t, beforeRec+1, testutil.ToFloat64(recursions.WithLabelValues("@@metrics-test")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordStatement("inert")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "moaflow_engine_statements_total"))
}
