package metrics

import (
	"sort"
	"time"
)

// Summary provides a summary of metrics for a filter.
type Summary struct {
	Count          int           `json:"count"`
	Detections     int           `json:"detections"`
	TotalTime      time.Duration `json:"total_time"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	AvgDetections  float64       `json:"avg_detections"`
	AvgTimeSeconds float64       `json:"avg_time_seconds"`
}

// GetSummary returns a summary of metrics matching the filter.
func (r *Recorder) GetSummary(f Filter) *Summary {
	metrics := r.List(f, 0)

	s := &Summary{Count: len(metrics)}
	for _, m := range metrics {
		s.Detections += m.Detections
		s.TotalTime += time.Duration(m.Seconds * float64(time.Second))
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
	}

	if s.Count > 0 {
		s.AvgDetections = float64(s.Detections) / float64(s.Count)
		s.AvgTimeSeconds = s.TotalTime.Seconds() / float64(s.Count)
	}
	return s
}

// DetailedStats adds latency percentiles and error breakdowns to a summary.
type DetailedStats struct {
	Summary

	// Latency percentiles (seconds)
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyP99 float64 `json:"latency_p99"`
	LatencyMin float64 `json:"latency_min"`
	LatencyMax float64 `json:"latency_max"`

	Errors map[string]int `json:"errors,omitempty"`
}

// GetDetailedStats returns detailed statistics including latency percentiles.
func (r *Recorder) GetDetailedStats(f Filter) *DetailedStats {
	stats := &DetailedStats{Summary: *r.GetSummary(f)}
	metrics := r.List(f, 0)
	if len(metrics) == 0 {
		return stats
	}

	latencies := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		latencies = append(latencies, m.Seconds)
		if m.ErrorType != "" {
			if stats.Errors == nil {
				stats.Errors = make(map[string]int)
			}
			stats.Errors[m.ErrorType]++
		}
	}
	sort.Float64s(latencies)

	stats.LatencyMin = latencies[0]
	stats.LatencyMax = latencies[len(latencies)-1]
	stats.LatencyP50 = percentile(latencies, 50)
	stats.LatencyP95 = percentile(latencies, 95)
	stats.LatencyP99 = percentile(latencies, 99)
	return stats
}

// ByEngine returns detailed stats grouped by engine.
func (r *Recorder) ByEngine(f Filter) map[string]*DetailedStats {
	engines := make(map[string]bool)
	for _, m := range r.List(f, 0) {
		engines[m.Engine] = true
	}
	out := make(map[string]*DetailedStats, len(engines))
	for name := range engines {
		ef := f
		ef.Engine = name
		out[name] = r.GetDetailedStats(ef)
	}
	return out
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Calculate the index
	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
