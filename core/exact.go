package core

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/constellation-allocator/model"
)

const ExactName = "exact"

// SearchMode selects how the exact allocator branches per application.
type SearchMode int

const (
	// ModeExhaustive tries every eligible satellite plus the skip branch and
	// is guaranteed to find the maximum.
	ModeExhaustive SearchMode = iota
	// ModeFirstFit commits to the first satellite that can host an
	// application (plus the skip branch). Faster, but not optimal.
	ModeFirstFit
)

func (m SearchMode) String() string {
	switch m {
	case ModeExhaustive:
		return "exhaustive"
	case ModeFirstFit:
		return "first-fit"
	default:
		return fmt.Sprintf("SearchMode(%d)", int(m))
	}
}

// ParseSearchMode maps a flag value onto a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exhaustive", "exact":
		return ModeExhaustive, nil
	case "first-fit", "firstfit", "break":
		return ModeFirstFit, nil
	default:
		return ModeExhaustive, fmt.Errorf("unknown search mode %q", s)
	}
}

// ExactConfig controls the backtracking search.
type ExactConfig struct {
	Mode SearchMode

	// Parallelism is the number of top-level branches explored at once.
	// Each branch works on its own clone of the snapshot.
	// Default: 1 (sequential)
	Parallelism int
}

// DefaultExactConfig returns the exhaustive, sequential configuration.
func DefaultExactConfig() ExactConfig {
	return ExactConfig{Mode: ModeExhaustive, Parallelism: 1}
}

// ApplyDefaults fills zero or invalid fields.
func (c ExactConfig) ApplyDefaults() ExactConfig {
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	return c
}

// ExactAllocator finds the maximum number of applications that can be
// placed at once by backtracking over every assignment. It is exponential
// in the number of applications and meant for small instances.
type ExactAllocator struct {
	cfg ExactConfig
}

// NewExactAllocator constructs an exact allocator with cfg.
func NewExactAllocator(cfg ExactConfig) *ExactAllocator {
	return &ExactAllocator{cfg: cfg.ApplyDefaults()}
}

func (e *ExactAllocator) Name() string { return ExactName }

// Config returns the effective configuration.
func (e *ExactAllocator) Config() ExactConfig { return e.cfg }

// Allocate returns the optimal count and one witness assignment. snap is
// restored to its pre-call state before Allocate returns.
func (e *ExactAllocator) Allocate(snap *Snapshot, apps []*model.Application, step int) (*Result, error) {
	el, err := prepare(snap, apps, step)
	if err != nil {
		return nil, err
	}

	var s *search
	if e.cfg.Parallelism > 1 && len(apps) > 0 {
		s, err = e.searchParallel(snap, apps, el)
		if err != nil {
			return nil, err
		}
	} else {
		s = newSearch(snap, apps, el, e.cfg.Mode)
		s.run(0, 0, -1)
	}

	res := newResult(ExactName, step, apps, s.witness(), snap)
	res.Stats = s.stats
	return res, nil
}

// searchParallel fans out over the decision for the first application:
// one branch per eligible satellite plus the skip branch.
func (e *ExactAllocator) searchParallel(snap *Snapshot, apps []*model.Application, el *eligibility) (*search, error) {
	type branch struct{ sat int }
	var branches []branch
	for _, i := range el.cover[0] {
		if !CanAllocate(snap.Satellites[i], apps[0]) {
			continue
		}
		branches = append(branches, branch{sat: i})
		if e.cfg.Mode == ModeFirstFit {
			break
		}
	}
	branches = append(branches, branch{sat: -1})

	results := make([]*search, len(branches))
	var g errgroup.Group
	g.SetLimit(e.cfg.Parallelism)
	for bi, b := range branches {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("exact search branch %d: %v", bi, r)
				}
			}()
			s := newSearch(snap.Clone(), apps, el, e.cfg.Mode)
			if b.sat < 0 {
				s.stats.NodesVisited++
				s.run(1, 0, -1)
			} else {
				s.stats.NodesVisited++
				s.place(0, b.sat, 0, -1)
			}
			results[bi] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Ties go to the lowest branch index, which matches sequential order.
	best := results[0]
	var stats SearchStats
	for _, r := range results {
		stats.NodesVisited += r.stats.NodesVisited
		stats.Pruned += r.stats.Pruned
		if r.best > best.best {
			best = r
		}
	}
	best.stats = stats
	return best, nil
}

// choice is one node of the persistent partial assignment. parent indexes
// the previous choice on the same branch, -1 for the root.
type choice struct {
	app    int
	sat    int
	parent int
}

type search struct {
	snap *Snapshot
	apps []*model.Application
	el   *eligibility
	mode SearchMode

	arena []choice
	best  int
	found []choice
	done  bool
	stats SearchStats
}

func newSearch(snap *Snapshot, apps []*model.Application, el *eligibility, mode SearchMode) *search {
	return &search{
		snap:  snap,
		apps:  apps,
		el:    el,
		mode:  mode,
		arena: make([]choice, 0, len(apps)),
	}
}

// run decides application depth given count allocations so far; tail is
// the arena index of the most recent choice on this branch.
func (s *search) run(depth, count, tail int) {
	if depth == len(s.apps) {
		if count > s.best || s.found == nil {
			s.best = count
			s.found = s.collect(tail)
			if count == len(s.apps) {
				s.done = true
			}
		}
		return
	}
	// Even placing every remaining application cannot beat the best.
	if s.found != nil && count+len(s.apps)-depth <= s.best {
		s.stats.Pruned++
		return
	}

	app := s.apps[depth]
	for _, i := range s.el.cover[depth] {
		if s.done {
			return
		}
		if !CanAllocate(s.snap.Satellites[i], app) {
			continue
		}
		s.stats.NodesVisited++
		s.place(depth, i, count, tail)
		if s.mode == ModeFirstFit {
			break
		}
	}
	if s.done {
		return
	}

	s.stats.NodesVisited++
	s.run(depth+1, count, tail)
}

// place tentatively binds application depth to satellite sat, explores
// the subtree, and reverts the binding when the subtree is done.
func (s *search) place(depth, sat, count, tail int) {
	g := Acquire(s.snap.Satellites[sat], s.apps[depth])
	defer g.Release()

	mark := len(s.arena)
	s.arena = append(s.arena, choice{app: depth, sat: sat, parent: tail})
	defer func() { s.arena = s.arena[:mark] }()

	s.run(depth+1, count+1, mark)
}

// collect materializes the branch ending at tail.
func (s *search) collect(tail int) []choice {
	out := []choice{}
	for i := tail; i >= 0; i = s.arena[i].parent {
		out = append(out, s.arena[i])
	}
	return out
}

// witness returns, per application, the satellite index of the best
// assignment found, or -1.
func (s *search) witness() []int {
	out := make([]int, len(s.apps))
	for i := range out {
		out[i] = -1
	}
	for _, c := range s.found {
		out[c.app] = c.sat
	}
	return out
}
