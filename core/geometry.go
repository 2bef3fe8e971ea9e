package core

import (
	"math"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// Distance returns the planar Euclidean distance between two points.
func Distance(p1, p2 model.Point) float64 {
	dx := p1.X - p2.X
	dy := p1.Y - p2.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// WithinCoverage reports whether app lies inside the satellite's footprint
// at the given step. The footprint is a closed disk: a distance equal to the
// radius counts as covered.
func WithinCoverage(sat *model.Satellite, app *model.Application, step int) (bool, error) {
	satPos, err := SatellitePosition(sat, step)
	if err != nil {
		return false, err
	}
	appPos, err := ApplicationPosition(app, step)
	if err != nil {
		return false, err
	}
	return inCoverage(satPos, appPos, sat.CoverageRadius), nil
}

func inCoverage(satPos, appPos model.Point, radius float64) bool {
	return Distance(satPos, appPos) <= radius
}
