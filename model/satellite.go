package model

// Point is a planar ground position. Coordinates share whatever unit the
// scenario uses (kilometres for TLE-derived tracks).
type Point struct {
	X float64
	Y float64
}

// Sample is one trajectory entry. Steps are 1-based and dense.
type Sample struct {
	Step     int
	Position Point
}

// Satellite is a compute-carrying spacecraft with a circular ground footprint.
//
// CPU and Memory hold the REMAINING capacity: they shrink on allocation and
// grow back on deallocation. Allocated is used as a stack so that undo can
// check it is popping the application it expects.
type Satellite struct {
	ID             string
	CPU            int
	Memory         int
	CoverageRadius float64
	Track          []Sample

	Allocated []string
}

// Clone returns a deep copy so allocators can mutate it freely.
func (s *Satellite) Clone() *Satellite {
	if s == nil {
		return nil
	}
	out := *s
	out.Track = append([]Sample(nil), s.Track...)
	out.Allocated = append([]string(nil), s.Allocated...)
	return &out
}

// FreeCapacity is the combined remaining CPU and memory. Both counters are
// non-negative, so the unsigned sum cannot wrap.
func (s *Satellite) FreeCapacity() uint64 {
	return uint64(s.CPU) + uint64(s.Memory)
}
