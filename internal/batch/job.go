package batch

import "github.com/dunamismax/pixelgrade/internal/pipeline"

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
)

// Item is the outcome for one asset of a batch. Output is set only on
// success and Err only on failure.
type Item struct {
	AssetID string
	Name    string
	Status  ItemStatus
	Output  *pipeline.Output
	Err     error
}

// Job is an in-memory batch run. It holds encoded outputs and is never
// persisted.
type Job struct {
	Items     []Item
	Completed int
	Total     int
	State     State
}

type Summary struct {
	Succeeded int
	Failed    int
	// Failures maps asset id to the failure reason.
	Failures map[string]string
}

func (j *Job) Summary() Summary {
	s := Summary{Failures: map[string]string{}}
	for _, item := range j.Items {
		switch item.Status {
		case ItemSucceeded:
			s.Succeeded++
		case ItemFailed:
			s.Failed++
			if item.Err != nil {
				s.Failures[item.AssetID] = item.Err.Error()
			}
		}
	}
	return s
}

// Outputs returns the successful outputs in batch order.
func (j *Job) Outputs() []pipeline.Output {
	out := make([]pipeline.Output, 0, len(j.Items))
	for _, item := range j.Items {
		if item.Status == ItemSucceeded && item.Output != nil {
			out = append(out, *item.Output)
		}
	}
	return out
}

func percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (completed*200 + total) / (total * 2)
}
