package metrics

import (
	"strings"
	"time"
)

// Filter specifies criteria for querying metrics.
type Filter struct {
	Engine string
	// ItemPrefix matches item keys, e.g. a document identity.
	ItemPrefix string
	After      time.Time
	Before     time.Time
	Success    *bool // nil = any, true = success only, false = errors only
}

func (f Filter) match(m Metric) bool {
	if f.Engine != "" && m.Engine != f.Engine {
		return false
	}
	if f.ItemPrefix != "" && !strings.HasPrefix(m.ItemKey, f.ItemPrefix) {
		return false
	}
	if !f.After.IsZero() && !m.CreatedAt.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !m.CreatedAt.Before(f.Before) {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	return true
}

// List returns metrics matching the filter, newest first. A limit of 0
// returns all matches.
func (r *Recorder) List(f Filter, limit int) []Metric {
	all := r.snapshot()
	out := make([]Metric, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if !f.match(all[i]) {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
