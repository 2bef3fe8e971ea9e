package core

import (
	"fmt"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// Snapshot is the ordered set of satellites considered for one allocation
// run. Allocators mutate the satellites in place; order is significant for
// tie-breaking. Build it with NewSnapshot; allocators re-check the
// satellites of hand-assembled snapshots before searching. Build it with NewSnapshot; allocators re-check the
// satellites of hand-assembled snapshots before searching.
type Snapshot struct {
	Satellites []*model.Satellite
	limits     Limits
}

// NewSnapshot validates and deep-copies sats. Callers keep ownership of the
// originals.
func NewSnapshot(sats []*model.Satellite, limits Limits) (*Snapshot, error) {
	if limits.MaxSatellites > 0 && len(sats) > limits.MaxSatellites {
		return nil, fmt.Errorf("%w: %d satellites, max %d", ErrLimitExceeded, len(sats), limits.MaxSatellites)
	}
	seen := make(map[string]struct{}, len(sats))
	out := make([]*model.Satellite, 0, len(sats))
	for _, sat := range sats {
		if err := ValidateSatellite(sat); err != nil {
			return nil, err
		}
		if _, dup := seen[sat.ID]; dup {
			return nil, fmt.Errorf("%w: satellite %q", ErrDuplicateID, sat.ID)
		}
		seen[sat.ID] = struct{}{}
		out = append(out, sat.Clone())
	}
	return &Snapshot{Satellites: out, limits: limits}, nil
}

// validateSnapshot applies the NewSnapshot checks to the satellites as they
// are now, partially allocated ledgers included.
func validateSnapshot(s *Snapshot) error {
	if s.limits.MaxSatellites > 0 && len(s.Satellites) > s.limits.MaxSatellites {
		return fmt.Errorf("%w: %d satellites, max %d", ErrLimitExceeded, len(s.Satellites), s.limits.MaxSatellites)
	}
	seen := make(map[string]struct{}, len(s.Satellites))
	for _, sat := range s.Satellites {
		if err := ValidateSatellite(sat); err != nil {
			return err
		}
		if _, dup := seen[sat.ID]; dup {
			return fmt.Errorf("%w: satellite %q", ErrDuplicateID, sat.ID)
		}
		seen[sat.ID] = struct{}{}
	}
	return nil
}

// Limits returns the limits the snapshot was built with.
func (s *Snapshot) Limits() Limits {
	return s.limits
}

// Clone returns an independent copy of the snapshot and its ledger state.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Satellites: make([]*model.Satellite, len(s.Satellites)),
		limits:     s.limits,
	}
	for i, sat := range s.Satellites {
		out.Satellites[i] = sat.Clone()
	}
	return out
}

// CheckStep fails with ErrOutOfRange if any satellite lacks a sample for step.
func (s *Snapshot) CheckStep(step int) error {
	for _, sat := range s.Satellites {
		if _, err := SatellitePosition(sat, step); err != nil {
			return err
		}
	}
	return nil
}

// Satellite returns the satellite with id, or nil.
func (s *Snapshot) Satellite(id string) *model.Satellite {
	for _, sat := range s.Satellites {
		if sat.ID == id {
			return sat
		}
	}
	return nil
}

// eligibility precomputes, for one step, which satellites cover which
// applications. cover[a][k] holds the index of the k-th satellite covering
// application a, in snapshot order.
type eligibility struct {
	cover [][]int
}

// prepare validates the run inputs and resolves coverage for step. Nothing
// is mutated; all errors surface before any allocator starts searching.
func prepare(snap *Snapshot, apps []*model.Application, step int) (*eligibility, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidDemand)
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	if err := ValidateApplications(apps, snap.limits); err != nil {
		return nil, err
	}
	satPos := make([]model.Point, len(snap.Satellites))
	for i, sat := range snap.Satellites {
		p, err := SatellitePosition(sat, step)
		if err != nil {
			return nil, err
		}
		satPos[i] = p
	}

	el := &eligibility{cover: make([][]int, len(apps))}
	for a, app := range apps {
		appPos, err := ApplicationPosition(app, step)
		if err != nil {
			return nil, err
		}
		for i, sat := range snap.Satellites {
			if inCoverage(satPos[i], appPos, sat.CoverageRadius) {
				el.cover[a] = append(el.cover[a], i)
			}
		}
	}
	return el, nil
}
