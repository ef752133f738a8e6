package pipeline

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// Result aggregates one generation pass.
type Result struct {
	RunID        string   `json:"run_id"`
	Total        int      `json:"total"`
	Generated    int      `json:"generated"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	GeneratedIDs []string `json:"generated_ids"`
	Errors       []string `json:"errors"`
	// NextOffset is the index a resumed bulk run should start from.
	NextOffset  int  `json:"next_offset"`
	Interrupted bool `json:"interrupted"`
}

func (r *Result) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

func (r *Result) fail(item core.ContentItem, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", item.ID, err))
}

// Attempt is one synthesis attempt of a repair loop.
type Attempt struct {
	ItemID string
	Number int
	Err    error
}

// Failed reports whether the attempt did not store an artifact.
func (a Attempt) Failed() bool {
	return a.Err != nil
}

// FailedRepair identifies an in-window item whose narration could not be repaired.
type FailedRepair struct {
	ID        string     `json:"id"`
	Kind      core.Kind  `json:"kind"`
	Title     string     `json:"title"`
	Date      civil.Date `json:"date"`
	Key       string     `json:"key"`
	LastError string     `json:"last_error"`
	Attempts  int        `json:"attempts"`
}

// Report aggregates one verification pass.
type Report struct {
	RunID         string         `json:"run_id"`
	Checked       int            `json:"checked"`
	Ready         int            `json:"ready"`
	Missing       int            `json:"missing"`
	Repaired      int            `json:"repaired"`
	FailedRepairs []FailedRepair `json:"failed_repairs"`
	Errors        []string       `json:"errors"`
}

// NeedsAttention reports whether scheduled content is left without narration.
func (r Report) NeedsAttention() bool {
	return len(r.FailedRepairs) > 0
}
