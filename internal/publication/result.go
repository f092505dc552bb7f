package publication

import (
	"time"

	"git.home.luguber.info/inful/bookversions/internal/model"
)

// ProgressFunc is called once per source page, before the page is processed. step
// counts from 1.
type ProgressFunc func(step, total int, page model.DocumentRef)

// Request starts one publication run.
type Request struct {
	Configuration model.DocumentRef
	User          string
	// JobID tags logs and events; optional.
	JobID    string
	Progress ProgressFunc
}

// PageFailure records a page whose copy could not be written.
type PageFailure struct {
	Page  model.DocumentRef `json:"page"`
	Error string            `json:"error"`
}

// Result summarises a run.
type Result struct {
	Configuration model.DocumentRef `json:"configuration"`
	Destination   model.SpaceRef    `json:"destination"`
	// Cancelled is set when a cancel run found the destination in use.
	Cancelled bool `json:"cancelled,omitempty"`
	Cleared   int  `json:"cleared,omitempty"`

	Published int           `json:"published"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Removed   int           `json:"removed"`
	Failures  []PageFailure `json:"failures,omitempty"`
	// PageOrderErrors counts preference pages that could not be copied.
	PageOrderErrors int `json:"page_order_errors,omitempty"`

	Duration time.Duration `json:"duration"`
}
