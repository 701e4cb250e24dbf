package domain

import (
	"time"
)

// Run identifies one execution of the pipeline, for reproducibility and later
// comparison across runs. It is created once per invocation, immutable after
// creation, and passed explicitly through the pipeline stages; CreatedAt is
// metadata only and never feeds computed values.
type Run struct {
	RunID     string    `json:"run_id"`
	AsOfDate  time.Time `json:"asof_date"`
	CreatedAt time.Time `json:"created_at"`
	Universe  []string  `json:"universe"`
	SourceDir string    `json:"source_dir"`
	Notes     string    `json:"notes,omitempty"`
}
