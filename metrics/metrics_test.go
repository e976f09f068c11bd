package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unit-pricing/models"
)

func TestRecordEvaluations(t *testing.T) {
	r := New()
	r.RecordEvaluations([]models.Evaluation{
		{State: models.StateAbove},
		{State: models.StateAbove},
		{State: models.StateInLine},
	}, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.unitsByState.WithLabelValues(string(models.StateAbove))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unitsByState.WithLabelValues(string(models.StateInLine))))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.unitsByState.WithLabelValues(string(models.StateBelow))))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.groups))
}

func TestCounters(t *testing.T) {
	r := New()
	r.RecordDropped("units", 3)
	r.RecordDropped("units", 2)
	r.RecordForecast(true)
	r.RecordForecast(false)
	r.RecordForecast(false)
	r.RecordViolations(4)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.droppedRows.WithLabelValues("units")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecastCalls.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecastCalls.WithLabelValues("failure")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.violations))
}

func TestPush(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		mu.Lock()
		path, body = req.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.RecordViolations(1)
	r.RecordStage("pricing", 150*time.Millisecond)

	require.NoError(t, r.Push(context.Background(), srv.URL))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasSuffix(path, "/job/"+jobName), path)
	assert.NotEmpty(t, body)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL)
	assert.Error(t, err)
}
