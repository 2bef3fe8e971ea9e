package core

import "github.com/signalsfoundry/constellation-allocator/model"

// Allocator assigns applications to satellites for a single time step.
type Allocator interface {
	// Name identifies the strategy, e.g. for metric labels.
	Name() string

	// Allocate runs the strategy over snap at step. Input validation and
	// step lookup happen before any ledger mutation.
	Allocate(snap *Snapshot, apps []*model.Application, step int) (*Result, error)
}

// Assignment binds one application to one satellite.
type Assignment struct {
	ApplicationID string
	SatelliteID   string
}

// SearchStats describes how much work an allocator did.
type SearchStats struct {
	NodesVisited int64
	Pruned       int64
}

// Result is the outcome of one allocation run.
//
// For the exact allocator Assignments is one optimal witness; the snapshot
// itself is left untouched. For the greedy allocator Assignments mirrors the
// final ledger state of the snapshot.
type Result struct {
	Allocator   string
	Step        int
	Allocated   int
	Assignments []Assignment
	Unallocated []string
	Stats       SearchStats
}

// SatelliteFor returns the satellite assigned to appID, or "".
func (r *Result) SatelliteFor(appID string) string {
	for _, a := range r.Assignments {
		if a.ApplicationID == appID {
			return a.SatelliteID
		}
	}
	return ""
}

func newResult(name string, step int, apps []*model.Application, assigned []int, snap *Snapshot) *Result {
	res := &Result{Allocator: name, Step: step}
	for a, app := range apps {
		if assigned[a] < 0 {
			res.Unallocated = append(res.Unallocated, app.ID)
			continue
		}
		res.Assignments = append(res.Assignments, Assignment{
			ApplicationID: app.ID,
			SatelliteID:   snap.Satellites[assigned[a]].ID,
		})
	}
	res.Allocated = len(res.Assignments)
	return res
}
