package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *MetricsCollector {
	t.Helper()
	mc := NewMetricsCollector(100, time.Hour)
	t.Cleanup(mc.Stop)
	return mc
}

func TestNormalizeRoutePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/creators":                                           "/api/v1/creators",
		"/api/v1/creators/507f1f77bcf86cd799439011":                  "/api/v1/creators/{id}",
		"/api/v1/creators/507f1f77bcf86cd799439011/":                 "/api/v1/creators/{id}",
		"/api/v1/creators/123e4567-e89b-12d3-a456-426614174000/posts": "/api/v1/creators/{id}/posts",
		"/api/v1/creators/12345678901":                               "/api/v1/creators/{id}",
		"/api/v1/creators/c001":                                      "/api/v1/creators/c001",
		"/":                                                          "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeRoutePath(in), in)
	}
}

func TestProcessTraceAggregatesRoutes(t *testing.T) {
	mc := newTestCollector(t)
	now := time.Now()

	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/creators", Status: 200, StartTime: now, TotalDuration: 10 * time.Millisecond,
		DBQueries: []DBQueryTrace{{Operation: "find"}, {Operation: "countDocuments"}}, DBTotalTime: 4 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/creators", Status: 500, StartTime: now, TotalDuration: 30 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "POST", Path: "/api/v1/creators/sort", Status: 200, StartTime: now, TotalDuration: 50 * time.Millisecond})

	summary := mc.GetSummary()
	assert.Equal(t, int64(3), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.TotalErrors)
	assert.InDelta(t, 1.0/3.0, summary.ErrorRate, 1e-9)
	assert.Equal(t, int64(2), summary.TotalDBQueries)
	assert.Equal(t, "2ms", summary.AvgDBTime)
	assert.Equal(t, 2, summary.RouteCount)
	assert.Equal(t, 3, summary.TraceCount)

	slowest := mc.GetSlowestRoutes(10, 0)
	require.Len(t, slowest, 2)
	assert.Equal(t, "/api/v1/creators/sort", slowest[0].Path)
	assert.Equal(t, 20*time.Millisecond, slowest[1].AvgTime)
	assert.Equal(t, 10*time.Millisecond, slowest[1].MinTime)
	assert.Equal(t, 30*time.Millisecond, slowest[1].MaxTime)
	assert.Equal(t, int64(1), slowest[1].ErrorCount)

	frequent := mc.GetMostFrequentRoutes(1, 0)
	require.Len(t, frequent, 1)
	assert.Equal(t, int64(2), frequent[0].Count)
	assert.Empty(t, mc.GetMostFrequentRoutes(5, 10))
}

func TestProcessTraceEvictsOldest(t *testing.T) {
	mc := NewMetricsCollector(2, time.Hour)
	defer mc.Stop()
	start := time.Now()

	for i := 0; i < 3; i++ {
		mc.processTrace(RequestTrace{RequestID: string(rune('a' + i)), Method: "GET", Path: "/x", StartTime: start.Add(time.Duration(i) * time.Second)})
	}

	traces := mc.GetTraces(10, time.Time{})
	require.Len(t, traces, 2)
	assert.Equal(t, "b", traces[0].RequestID)
	assert.Equal(t, "c", traces[1].RequestID)
	assert.Len(t, mc.GetTraces(1, time.Time{}), 1)
	assert.Equal(t, "c", mc.GetTraces(1, time.Time{})[0].RequestID)
}

func TestPercentilesEveryHundredRequests(t *testing.T) {
	mc := newTestCollector(t)
	for i := 1; i <= 100; i++ {
		mc.processTrace(RequestTrace{Method: "GET", Path: "/p", StartTime: time.Now(), TotalDuration: time.Duration(i) * time.Millisecond})
	}

	routes := mc.GetSlowestRoutes(1, 0)
	require.Len(t, routes, 1)
	assert.Equal(t, 51*time.Millisecond, routes[0].P50Time)
	assert.Equal(t, 96*time.Millisecond, routes[0].P95Time)
	assert.Equal(t, 100*time.Millisecond, routes[0].P99Time)
}

func TestExpireDropsOldTraces(t *testing.T) {
	mc := newTestCollector(t)
	now := time.Now()
	mc.processTrace(RequestTrace{RequestID: "old", Method: "GET", Path: "/x", StartTime: now.Add(-2 * time.Hour)})
	mc.processTrace(RequestTrace{RequestID: "new", Method: "GET", Path: "/x", StartTime: now})

	mc.expire(now)

	traces := mc.GetTraces(10, time.Time{})
	require.Len(t, traces, 1)
	assert.Equal(t, "new", traces[0].RequestID)
}

func TestRecordDBQueryFromContext(t *testing.T) {
	trace := &RequestTrace{}
	ctx := WithRequestTrace(context.Background(), trace)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordDBQueryFromContext(ctx, "find", "creators", time.Millisecond, nil)
		}()
	}
	wg.Wait()
	RecordDBQueryFromContext(ctx, "aggregate", "creators", time.Millisecond, errors.New("boom"))
	RecordDBQueryFromContext(context.Background(), "find", "creators", time.Millisecond, nil)

	got := snapshotTrace(ctx)
	assert.Len(t, got.DBQueries, 11)
	assert.Equal(t, 11*time.Millisecond, got.DBTotalTime)
	assert.Equal(t, "boom", got.DBQueries[10].Error)
}

func TestMetricsMiddlewareRecordsTrace(t *testing.T) {
	mc := newTestCollector(t)
	handler := MetricsMiddleware(mc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RecordDBQueryFromContext(r.Context(), "find", "creators", 2*time.Millisecond, nil)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/creators/507f1f77bcf86cd799439011", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
	require.Eventually(t, func() bool { return mc.GetSummary().TotalRequests == 1 }, time.Second, 5*time.Millisecond)

	traces := mc.GetTraces(10, time.Time{})
	require.Len(t, traces, 1)
	assert.Equal(t, "/api/v1/creators/{id}", traces[0].Path)
	assert.Equal(t, http.StatusTeapot, traces[0].Status)
	assert.Equal(t, "I'm a teapot", traces[0].Error)
	assert.Len(t, traces[0].DBQueries, 1)
}
