package store

import (
	"time"

	"github.com/signalsfoundry/constellation-allocator/core"
)

// RunRecord is one allocator invocation at one step. Runs from the same
// sweep share a RunID.
type RunRecord struct {
	ID           int64
	RunID        string
	Dataset      string
	Step         int
	Allocator    string
	Mode         string
	Allocated    int
	Total        int
	NodesVisited int64
	Pruned       int64
	Duration     time.Duration
	CreatedAt    time.Time

	Assignments []core.Assignment
}

// RecordFromResult builds a RunRecord from an allocator result.
func RecordFromResult(runID, dataset, mode string, res *core.Result, d time.Duration) *RunRecord {
	return &RunRecord{
		RunID:        runID,
		Dataset:      dataset,
		Step:         res.Step,
		Allocator:    res.Allocator,
		Mode:         mode,
		Allocated:    res.Allocated,
		Total:        res.Allocated + len(res.Unallocated),
		NodesVisited: res.Stats.NodesVisited,
		Pruned:       res.Stats.Pruned,
		Duration:     d,
		CreatedAt:    time.Now().UTC(),
		Assignments:  append([]core.Assignment(nil), res.Assignments...),
	}
}
