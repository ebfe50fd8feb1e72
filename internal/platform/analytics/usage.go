// Package analytics aggregates API usage and session activity in memory.
package analytics

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

// ---------------------------------------------------------------------------
// Core metric type
// ---------------------------------------------------------------------------

// RequestMetric captures a single API request. Route is the registered route
// template ("POST /api/v1/sessions/:id/advance"), so per-session URLs collapse
// into one endpoint.
type RequestMetric struct {
	Timestamp    time.Time     `json:"timestamp"`
	Method       string        `json:"method"`
	Route        string        `json:"route"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	SessionID    string        `json:"session_id,omitempty"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

type routeStats struct {
	Route         string
	TotalRequests int64
	TotalErrors   int64
	TotalDuration int64 // nanoseconds
	StatusCounts  map[int]int64
	mu            sync.Mutex
}

type sessionStats struct {
	SessionID     string
	TotalRequests int64
	TotalErrors   int64
	LastSeen      time.Time
	Events        map[string]int64
}

// ---------------------------------------------------------------------------
// Summary types
// ---------------------------------------------------------------------------

// RouteSummary provides aggregated statistics for one route.
type RouteSummary struct {
	Route           string        `json:"route"`
	TotalRequests   int64         `json:"total_requests"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

// SessionSummary is the activity of one authoring session.
type SessionSummary struct {
	SessionID     string           `json:"session_id"`
	TotalRequests int64            `json:"total_requests"`
	ErrorRate     float64          `json:"error_rate"`
	LastSeen      time.Time        `json:"last_seen"`
	Events        map[string]int64 `json:"events"`
}

// UsageOverview provides a high-level summary.
type UsageOverview struct {
	TotalRequests      int64            `json:"total_requests"`
	TotalErrors        int64            `json:"total_errors"`
	ErrorRate          float64          `json:"error_rate"`
	AvgLatency         time.Duration    `json:"avg_latency"`
	SessionsSeen       int              `json:"sessions_seen"`
	Routes             int              `json:"routes"`
	TopRoutes          []*RouteSummary  `json:"top_routes"`
	Events             map[string]int64 `json:"events"`
	SuggestionFailRate float64          `json:"suggestion_fail_rate"`
}

// TimeSeriesBucket holds aggregated metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// ---------------------------------------------------------------------------
// UsageTracker
// ---------------------------------------------------------------------------

// UsageTracker keeps a ring buffer of recent requests, per-route and
// per-session counters, and a count of every session event it is handed.
// It implements websocket.EventPublisher so it can sit next to the hub.
type UsageTracker struct {
	metrics     []*RequestMetric
	maxMetrics  int
	maxSessions int
	writePos    int
	full        bool
	routes      map[string]*routeStats
	sessions    map[string]*sessionStats
	events      map[string]int64
	mu          sync.RWMutex

	totalRequests int64
	totalErrors   int64
	totalDuration int64 // nanoseconds

	now func() time.Time
}

// NewUsageTracker creates a tracker holding at most maxMetrics requests and
// maxSessions session records; the least recently seen session is dropped
// first.
func NewUsageTracker(maxMetrics, maxSessions int) *UsageTracker {
	if maxMetrics <= 0 {
		maxMetrics = 10000
	}
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &UsageTracker{
		metrics:     make([]*RequestMetric, 0, maxMetrics),
		maxMetrics:  maxMetrics,
		maxSessions: maxSessions,
		routes:      make(map[string]*routeStats),
		sessions:    make(map[string]*sessionStats),
		events:      make(map[string]int64),
		now:         time.Now,
	}
}

// Record appends a metric to the ring buffer and updates all counters.
func (ut *UsageTracker) Record(metric *RequestMetric) {
	isError := metric.StatusCode >= 400

	atomic.AddInt64(&ut.totalRequests, 1)
	if isError {
		atomic.AddInt64(&ut.totalErrors, 1)
	}
	atomic.AddInt64(&ut.totalDuration, int64(metric.Duration))

	ut.mu.Lock()
	if ut.full {
		ut.metrics[ut.writePos] = metric
	} else {
		ut.metrics = append(ut.metrics, metric)
	}
	ut.writePos++
	if ut.writePos >= ut.maxMetrics {
		ut.writePos = 0
		ut.full = true
	}

	rs, ok := ut.routes[metric.Route]
	if !ok {
		rs = &routeStats{Route: metric.Route, StatusCounts: make(map[int]int64)}
		ut.routes[metric.Route] = rs
	}

	if metric.SessionID != "" {
		ss := ut.sessionLocked(metric.SessionID, metric.Timestamp)
		ss.TotalRequests++
		if isError {
			ss.TotalErrors++
		}
	}
	ut.mu.Unlock()

	// per-route mutex to reduce contention
	rs.mu.Lock()
	rs.TotalRequests++
	if isError {
		rs.TotalErrors++
	}
	rs.TotalDuration += int64(metric.Duration)
	rs.StatusCounts[metric.StatusCode]++
	rs.mu.Unlock()
}

// Publish counts a session event.
func (ut *UsageTracker) Publish(_ context.Context, event websocket.Event) error {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	ut.events[event.Type]++
	if event.SessionID != "" {
		ts := event.Timestamp
		if ts.IsZero() {
			ts = ut.now()
		}
		ss := ut.sessionLocked(event.SessionID, ts)
		ss.Events[event.Type]++
	}
	return nil
}

func (ut *UsageTracker) sessionLocked(id string, seen time.Time) *sessionStats {
	ss, ok := ut.sessions[id]
	if !ok {
		if len(ut.sessions) >= ut.maxSessions {
			ut.evictOldestSessionLocked()
		}
		ss = &sessionStats{SessionID: id, Events: make(map[string]int64)}
		ut.sessions[id] = ss
	}
	if seen.After(ss.LastSeen) {
		ss.LastSeen = seen
	}
	return ss
}

func (ut *UsageTracker) evictOldestSessionLocked() {
	var oldest string
	var oldestAt time.Time
	for id, ss := range ut.sessions {
		if oldest == "" || ss.LastSeen.Before(oldestAt) {
			oldest, oldestAt = id, ss.LastSeen
		}
	}
	delete(ut.sessions, oldest)
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// GetRouteStats returns aggregated stats for one route, or nil.
func (ut *UsageTracker) GetRouteStats(route string) *RouteSummary {
	ut.mu.RLock()
	rs, ok := ut.routes[route]
	ut.mu.RUnlock()
	if !ok {
		return nil
	}
	return ut.buildRouteSummary(rs)
}

// GetSessionStats returns the activity of one session, or nil.
func (ut *UsageTracker) GetSessionStats(id string) *SessionSummary {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	ss, ok := ut.sessions[id]
	if !ok {
		return nil
	}

	var errorRate float64
	if ss.TotalRequests > 0 {
		errorRate = float64(ss.TotalErrors) / float64(ss.TotalRequests)
	}
	events := make(map[string]int64, len(ss.Events))
	for k, v := range ss.Events {
		events[k] = v
	}
	return &SessionSummary{
		SessionID:     ss.SessionID,
		TotalRequests: ss.TotalRequests,
		ErrorRate:     errorRate,
		LastSeen:      ss.LastSeen,
		Events:        events,
	}
}

// EventCounts returns how many events of each type were published.
func (ut *UsageTracker) EventCounts() map[string]int64 {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	out := make(map[string]int64, len(ut.events))
	for k, v := range ut.events {
		out[k] = v
	}
	return out
}

// GetOverview returns a high-level usage summary.
func (ut *UsageTracker) GetOverview() *UsageOverview {
	total := atomic.LoadInt64(&ut.totalRequests)
	errs := atomic.LoadInt64(&ut.totalErrors)

	ut.mu.RLock()
	sessions := len(ut.sessions)
	routes := len(ut.routes)
	ut.mu.RUnlock()

	events := ut.EventCounts()
	var failRate float64
	ready, failed := events[websocket.EventSuggestionsReady], events[websocket.EventSuggestionsError]
	if ready+failed > 0 {
		failRate = float64(failed) / float64(ready+failed)
	}

	return &UsageOverview{
		TotalRequests:      total,
		TotalErrors:        errs,
		ErrorRate:          ut.GetErrorRate(),
		AvgLatency:         ut.GetAverageLatency(),
		SessionsSeen:       sessions,
		Routes:             routes,
		TopRoutes:          ut.GetTopRoutes(5),
		Events:             events,
		SuggestionFailRate: failRate,
	}
}

// GetTopRoutes returns the top N routes by request count.
func (ut *UsageTracker) GetTopRoutes(limit int) []*RouteSummary {
	ut.mu.RLock()
	all := make([]*routeStats, 0, len(ut.routes))
	for _, rs := range ut.routes {
		all = append(all, rs)
	}
	ut.mu.RUnlock()

	summaries := make([]*RouteSummary, 0, len(all))
	for _, rs := range all {
		summaries = append(summaries, ut.buildRouteSummary(rs))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalRequests != summaries[j].TotalRequests {
			return summaries[i].TotalRequests > summaries[j].TotalRequests
		}
		return summaries[i].Route < summaries[j].Route
	})

	if limit > len(summaries) {
		limit = len(summaries)
	}
	return summaries[:limit]
}

// GetTimeSeries returns request counts bucketed by interval over the
// lookback duration.
func (ut *UsageTracker) GetTimeSeries(interval, duration time.Duration) []*TimeSeriesBucket {
	now := ut.now()
	start := now.Add(-duration).Truncate(interval)
	numBuckets := int(duration/interval) + 1

	buckets := make([]*TimeSeriesBucket, numBuckets)
	for i := range buckets {
		buckets[i] = &TimeSeriesBucket{Timestamp: start.Add(time.Duration(i) * interval)}
	}

	ut.mu.RLock()
	snapshot := make([]*RequestMetric, len(ut.metrics))
	copy(snapshot, ut.metrics)
	ut.mu.RUnlock()

	for _, m := range snapshot {
		if m.Timestamp.Before(start) || m.Timestamp.After(now) {
			continue
		}
		idx := int(m.Timestamp.Sub(start) / interval)
		if idx < 0 || idx >= numBuckets {
			continue
		}
		buckets[idx].RequestCount++
		if m.StatusCode >= 400 {
			buckets[idx].ErrorCount++
		}
		buckets[idx].AvgLatency += m.Duration // summed here, averaged below
	}

	for _, b := range buckets {
		if b.RequestCount > 0 {
			b.AvgLatency = time.Duration(int64(b.AvgLatency) / b.RequestCount)
		}
	}
	return buckets
}

// GetErrorRate returns the overall error rate between 0 and 1.
func (ut *UsageTracker) GetErrorRate() float64 {
	total := atomic.LoadInt64(&ut.totalRequests)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&ut.totalErrors)) / float64(total)
}

// GetAverageLatency returns the average request duration.
func (ut *UsageTracker) GetAverageLatency() time.Duration {
	total := atomic.LoadInt64(&ut.totalRequests)
	if total == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&ut.totalDuration) / total)
}

func (ut *UsageTracker) buildRouteSummary(rs *routeStats) *RouteSummary {
	rs.mu.Lock()
	summary := &RouteSummary{
		Route:           rs.Route,
		TotalRequests:   rs.TotalRequests,
		StatusBreakdown: make(map[int]int64, len(rs.StatusCounts)),
	}
	if rs.TotalRequests > 0 {
		summary.ErrorRate = float64(rs.TotalErrors) / float64(rs.TotalRequests)
		summary.AvgLatency = time.Duration(rs.TotalDuration / rs.TotalRequests)
	}
	for code, n := range rs.StatusCounts {
		summary.StatusBreakdown[code] = n
	}
	rs.mu.Unlock()

	summary.P95Latency = ut.computeP95(rs.Route)
	return summary
}

func (ut *UsageTracker) computeP95(route string) time.Duration {
	ut.mu.RLock()
	var durations []time.Duration
	for _, m := range ut.metrics {
		if m.Route == route {
			durations = append(durations, m.Duration)
		}
	}
	ut.mu.RUnlock()

	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	idx := int(float64(len(durations)) * 0.95)
	if idx >= len(durations) {
		idx = len(durations) - 1
	}
	return durations[idx]
}

// ---------------------------------------------------------------------------
// Echo middleware
// ---------------------------------------------------------------------------

// UsageMiddleware records every request into tracker. Requests on session
// routes are attributed to the session in the :id path parameter.
func UsageMiddleware(tracker *UsageTracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := tracker.now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			var sessionID string
			if strings.HasPrefix(route, "/api/v1/sessions/:id") {
				sessionID = c.Param("id")
			}
			var requestSize int64
			if req.ContentLength > 0 {
				requestSize = req.ContentLength
			}

			tracker.Record(&RequestMetric{
				Timestamp:    start,
				Method:       req.Method,
				Route:        req.Method + " " + route,
				StatusCode:   c.Response().Status,
				Duration:     tracker.now().Sub(start),
				SessionID:    sessionID,
				RequestSize:  requestSize,
				ResponseSize: c.Response().Size,
			})
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Echo HTTP handler
// ---------------------------------------------------------------------------

// UsageHandler serves the analytics endpoints.
type UsageHandler struct {
	tracker *UsageTracker
}

func NewUsageHandler(tracker *UsageTracker) *UsageHandler {
	return &UsageHandler{tracker: tracker}
}

func (h *UsageHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/analytics/overview", h.HandleOverview)
	g.GET("/analytics/routes", h.HandleTopRoutes)
	g.GET("/analytics/events", h.HandleEvents)
	g.GET("/analytics/sessions/:id", h.HandleSession)
	g.GET("/analytics/timeseries", h.HandleTimeSeries)
}

func (h *UsageHandler) HandleOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetOverview())
}

func (h *UsageHandler) HandleTopRoutes(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return c.JSON(http.StatusOK, h.tracker.GetTopRoutes(limit))
}

func (h *UsageHandler) HandleEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.EventCounts())
}

func (h *UsageHandler) HandleSession(c echo.Context) error {
	summary := h.tracker.GetSessionStats(c.Param("id"))
	if summary == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no activity recorded for session")
	}
	return c.JSON(http.StatusOK, summary)
}

// HandleTimeSeries returns time-bucketed request counts.
func (h *UsageHandler) HandleTimeSeries(c echo.Context) error {
	interval := parseDurationParam(c.QueryParam("interval"), time.Minute)
	duration := parseDurationParam(c.QueryParam("duration"), time.Hour)
	if interval <= 0 || duration <= 0 || duration/interval > 10000 {
		return echo.NewHTTPError(http.StatusBadRequest, "interval and duration must be positive and yield at most 10000 buckets")
	}
	return c.JSON(http.StatusOK, h.tracker.GetTimeSeries(interval, duration))
}

// parseDurationParam parses "1m", "1h", "24h" and the like; a "d" suffix
// counts days.
func parseDurationParam(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if strings.HasSuffix(s, "d") {
		if n, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
