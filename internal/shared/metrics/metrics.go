package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	submissionsStartedTotal atomic.Uint64
	httpRequestsTotal       atomic.Uint64
	rateLimitedTotal        atomic.Uint64
	panicsTotal             atomic.Uint64

	outcomes = newCounterVec()

	pipelineDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})

	upstreamMu        sync.Mutex
	upstreamDurations = map[string]*histogram{}
)

var upstreamBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// IncSubmissionStarted increments the started counter.
func IncSubmissionStarted() {
	submissionsStartedTotal.Add(1)
}

// IncHTTPRequest increments the request counter.
func IncHTTPRequest() {
	httpRequestsTotal.Add(1)
}

// IncRateLimited counts a request rejected by the rate limiter.
func IncRateLimited() {
	rateLimitedTotal.Add(1)
}

// IncPanic counts a recovered handler panic.
func IncPanic() {
	panicsTotal.Add(1)
}

// IncOutcome counts a finished submission by status and stage. Stage is empty on success.
func IncOutcome(status, stage string) {
	outcomes.Inc(status, stage)
}

// ObservePipelineDurationMs records a pipeline run duration in milliseconds.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
}

// ObserveUpstream records the latency of one external call.
func ObserveUpstream(provider string, d time.Duration) {
	upstreamMu.Lock()
	h, ok := upstreamDurations[provider]
	if !ok {
		h = newHistogram(upstreamBuckets)
		upstreamDurations[provider] = h
	}
	upstreamMu.Unlock()
	h.Observe(float64(d.Microseconds()) / 1000.0)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "http_requests_total", "Total HTTP requests served", httpRequestsTotal.Load())
	writeCounter(&buf, "http_rate_limited_total", "HTTP requests rejected by the rate limiter", rateLimitedTotal.Load())
	writeCounter(&buf, "http_panics_total", "Recovered handler panics", panicsTotal.Load())
	writeCounter(&buf, "submissions_started_total", "Total candidate submissions started", submissionsStartedTotal.Load())
	writeCounterVec(&buf, "submission_outcomes_total", "Candidate submissions by outcome", outcomes.Snapshot())
	writeHistogram(&buf, "pipeline_duration_ms", "Pipeline duration in milliseconds", "", pipelineDuration.Snapshot())

	upstreamMu.Lock()
	providers := make([]string, 0, len(upstreamDurations))
	for p := range upstreamDurations {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	snaps := make([]histogramSnapshot, len(providers))
	for i, p := range providers {
		snaps[i] = upstreamDurations[p].Snapshot()
	}
	upstreamMu.Unlock()
	if len(providers) > 0 {
		fmt.Fprintf(&buf, "# HELP upstream_duration_ms External call duration in milliseconds\n")
		fmt.Fprintf(&buf, "# TYPE upstream_duration_ms histogram\n")
		for i, p := range providers {
			writeHistogramSeries(&buf, "upstream_duration_ms", fmt.Sprintf("provider=%q", p), snaps[i])
		}
	}
	return buf.String()
}

type outcomeKey struct {
	status string
	stage  string
}

type counterVec struct {
	mu     sync.Mutex
	counts map[outcomeKey]uint64
}

func newCounterVec() *counterVec {
	return &counterVec{counts: map[outcomeKey]uint64{}}
}

func (v *counterVec) Inc(status, stage string) {
	v.mu.Lock()
	v.counts[outcomeKey{status: status, stage: stage}]++
	v.mu.Unlock()
}

func (v *counterVec) Snapshot() map[outcomeKey]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[outcomeKey]uint64, len(v.counts))
	for k, n := range v.counts {
		out[k] = n
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe stores the value in its first matching bucket; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeCounterVec(buf *bytes.Buffer, name, help string, values map[outcomeKey]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]outcomeKey, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].status != keys[j].status {
			return keys[i].status < keys[j].status
		}
		return keys[i].stage < keys[j].stage
	})
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{status=%q,stage=%q} %d\n", name, k.status, k.stage, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help, labels string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	writeHistogramSeries(buf, name, labels, snap)
}

func writeHistogramSeries(buf *bytes.Buffer, name, labels string, snap histogramSnapshot) {
	prefix := ""
	suffix := ""
	if labels != "" {
		prefix = labels + ","
		suffix = "{" + labels + "}"
	}
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{%sle=\"%s\"} %d\n", name, prefix, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{%sle=\"+Inf\"} %d\n", name, prefix, snap.count)
	fmt.Fprintf(buf, "%s_sum%s %s\n", name, suffix, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count%s %d\n", name, suffix, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
