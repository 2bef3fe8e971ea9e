package core

import "github.com/signalsfoundry/constellation-allocator/model"

const GreedyName = "greedy"

// GreedyAllocator makes one pass over the applications and places each on
// the eligible satellite with the most combined free capacity. It never
// revisits a decision, so it can under-allocate compared to ExactAllocator.
type GreedyAllocator struct{}

// NewGreedyAllocator returns the single-pass heuristic.
func NewGreedyAllocator() *GreedyAllocator {
	return &GreedyAllocator{}
}

func (g *GreedyAllocator) Name() string { return GreedyName }

// Allocate mutates snap: the chosen allocations stay on the satellites'
// ledgers and are mirrored in the returned Result.
func (g *GreedyAllocator) Allocate(snap *Snapshot, apps []*model.Application, step int) (*Result, error) {
	el, err := prepare(snap, apps, step)
	if err != nil {
		return nil, err
	}

	var stats SearchStats
	assigned := make([]int, len(apps))
	for a, app := range apps {
		assigned[a] = -1
		best, bestFree := -1, uint64(0)
		for _, i := range el.cover[a] {
			stats.NodesVisited++
			sat := snap.Satellites[i]
			if !CanAllocate(sat, app) {
				continue
			}
			// Strictly greater keeps the first satellite on ties.
			if free := sat.FreeCapacity(); best < 0 || free > bestFree {
				best, bestFree = i, free
			}
		}
		if best >= 0 {
			Allocate(snap.Satellites[best], app)
			assigned[a] = best
		}
	}

	res := newResult(GreedyName, step, apps, assigned, snap)
	res.Stats = stats
	return res, nil
}
