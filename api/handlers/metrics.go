package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/linesmerrill/creator-discovery-api/api"
)

// routeMetricsView is a route's metrics with durations in milliseconds
type routeMetricsView struct {
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Count       int64     `json:"count"`
	ErrorCount  int64     `json:"errorCount"`
	AvgTime     int64     `json:"avgTime"`
	MinTime     int64     `json:"minTime"`
	MaxTime     int64     `json:"maxTime"`
	P50Time     int64     `json:"p50Time"`
	P95Time     int64     `json:"p95Time"`
	P99Time     int64     `json:"p99Time"`
	DBAvgTime   int64     `json:"dbAvgTime"`
	LastRequest time.Time `json:"lastRequest"`
}

// slowQueryView is one store call slower than the requested threshold
type slowQueryView struct {
	RequestID  string    `json:"requestId"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Operation  string    `json:"operation"`
	Collection string    `json:"collection"`
	Duration   string    `json:"duration"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func formatRouteMetrics(routes []api.RouteMetrics) []routeMetricsView {
	result := make([]routeMetricsView, len(routes))
	for i, route := range routes {
		result[i] = routeMetricsView{
			Method:      route.Method,
			Path:        route.Path,
			Count:       route.Count,
			ErrorCount:  route.ErrorCount,
			AvgTime:     route.AvgTime.Milliseconds(),
			MinTime:     route.MinTime.Milliseconds(),
			MaxTime:     route.MaxTime.Milliseconds(),
			P50Time:     route.P50Time.Milliseconds(),
			P95Time:     route.P95Time.Milliseconds(),
			P99Time:     route.P99Time.Milliseconds(),
			DBAvgTime:   route.DBAvgTime.Milliseconds(),
			LastRequest: route.LastRequest,
		}
	}
	return result
}

// MetricsHandler serves the request metrics the MetricsMiddleware collects
type MetricsHandler struct {
	Metrics *api.MetricsCollector
}

// GetMetricsSummary returns the summary plus the slowest and most frequent routes
func (m MetricsHandler) GetMetricsSummary(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	writeJSON(w, map[string]interface{}{
		"summary":      m.Metrics.GetSummary(),
		"slowest":      formatRouteMetrics(m.Metrics.GetSlowestRoutes(limit, offset)),
		"mostFrequent": formatRouteMetrics(m.Metrics.GetMostFrequentRoutes(limit, offset)),
		"pagination": map[string]int{
			"limit":  limit,
			"offset": offset,
		},
	})
}

// GetSlowQueries returns store calls slower than minDuration (default 100ms)
func (m MetricsHandler) GetSlowQueries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	since := time.Now().Add(-querySince(r))
	minDuration := 100 * time.Millisecond
	if d, err := time.ParseDuration(r.URL.Query().Get("minDuration")); err == nil {
		minDuration = d
	}

	slow := []slowQueryView{}
	for _, trace := range m.Metrics.GetTraces(limit*10, since) {
		for _, q := range trace.DBQueries {
			if q.Duration < minDuration || len(slow) >= limit {
				continue
			}
			slow = append(slow, slowQueryView{
				RequestID:  trace.RequestID,
				Method:     trace.Method,
				Path:       trace.Path,
				Operation:  q.Operation,
				Collection: q.Collection,
				Duration:   q.Duration.String(),
				Error:      q.Error,
				Timestamp:  q.Timestamp,
			})
		}
	}

	writeJSON(w, map[string]interface{}{
		"slowQueries": slow,
		"count":       len(slow),
		"minDuration": minDuration.String(),
		"since":       since,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	if parsed, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && parsed >= 0 {
		return parsed
	}
	return def
}

func querySince(r *http.Request) time.Duration {
	if d, err := time.ParseDuration(r.URL.Query().Get("since")); err == nil && d > 0 {
		return d
	}
	return time.Hour
}
