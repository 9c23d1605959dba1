// Package metrics provides usage tracking for recognition calls.
package metrics

import "time"

// Metric represents a single recorded recognition call.
type Metric struct {
	// Attribution (for filtering/aggregation)
	Engine  string `json:"engine"`
	ItemKey string `json:"item_key,omitempty"` // e.g., "/books/a.pdf#3/img0"

	// Output
	Detections int `json:"detections"`

	// Timing
	Seconds float64 `json:"seconds"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
