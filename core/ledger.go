package core

import "github.com/signalsfoundry/constellation-allocator/model"

// CanAllocate reports whether sat has enough remaining CPU and memory for app.
func CanAllocate(sat *model.Satellite, app *model.Application) bool {
	return sat.CPU >= app.CPU && sat.Memory >= app.Memory
}

// Allocate binds app to sat. The caller must have checked CanAllocate.
func Allocate(sat *model.Satellite, app *model.Application) {
	if !CanAllocate(sat, app) {
		panic(&LedgerInconsistencyError{
			SatelliteID:   sat.ID,
			ApplicationID: app.ID,
			Reason:        "allocate without sufficient capacity",
		})
	}
	sat.CPU -= app.CPU
	sat.Memory -= app.Memory
	sat.Allocated = append(sat.Allocated, app.ID)
}

// Deallocate undoes the most recent Allocate on sat, which must have been
// for app. Any other order panics with *LedgerInconsistencyError.
func Deallocate(sat *model.Satellite, app *model.Application) {
	n := len(sat.Allocated)
	if n == 0 {
		panic(&LedgerInconsistencyError{
			SatelliteID:   sat.ID,
			ApplicationID: app.ID,
			Reason:        "deallocate with nothing allocated",
		})
	}
	if top := sat.Allocated[n-1]; top != app.ID {
		panic(&LedgerInconsistencyError{
			SatelliteID:   sat.ID,
			ApplicationID: app.ID,
			Reason:        "deallocate out of order, last allocated is " + top,
		})
	}
	sat.CPU += app.CPU
	sat.Memory += app.Memory
	sat.Allocated = sat.Allocated[:n-1]
}

// AllocationGuard holds one tentative allocation and reverts it on Release.
type AllocationGuard struct {
	sat      *model.Satellite
	app      *model.Application
	released bool
}

// Acquire allocates app on sat and returns a guard that undoes it.
// Typical use is
//
//	g := Acquire(sat, app)
//	defer g.Release()
func Acquire(sat *model.Satellite, app *model.Application) *AllocationGuard {
	Allocate(sat, app)
	return &AllocationGuard{sat: sat, app: app}
}

// Release reverts the allocation. Calling it more than once is a no-op.
func (g *AllocationGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	Deallocate(g.sat, g.app)
}

// Commit keeps the allocation; a later Release does nothing.
func (g *AllocationGuard) Commit() {
	if g != nil {
		g.released = true
	}
}
