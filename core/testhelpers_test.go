package core

import (
	"testing"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// stationary builds a satellite that sits at (x, y) for steps 1..steps.
func stationary(id string, cpu, mem int, radius, x, y float64, steps int) *model.Satellite {
	track := make([]model.Sample, steps)
	for i := range track {
		track[i] = model.Sample{Step: i + 1, Position: model.Point{X: x, Y: y}}
	}
	return &model.Satellite{ID: id, CPU: cpu, Memory: mem, CoverageRadius: radius, Track: track}
}

func app(id string, cpu, mem int, x, y float64) *model.Application {
	return &model.Application{ID: id, CPU: cpu, Memory: mem, Position: model.Point{X: x, Y: y}}
}

func mustSnapshot(t testing.TB, sats ...*model.Satellite) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(sats, Limits{})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

type ledgerState struct {
	cpu, mem  int
	allocated []string
}

func captureLedger(snap *Snapshot) map[string]ledgerState {
	out := make(map[string]ledgerState, len(snap.Satellites))
	for _, sat := range snap.Satellites {
		out[sat.ID] = ledgerState{
			cpu:       sat.CPU,
			mem:       sat.Memory,
			allocated: append([]string(nil), sat.Allocated...),
		}
	}
	return out
}
