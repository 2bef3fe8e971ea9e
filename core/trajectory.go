package core

import (
	"fmt"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// PositionAt returns the sample stored for the 1-based step.
func PositionAt(track []model.Sample, step int) (model.Point, error) {
	if step < 1 || step > len(track) {
		return model.Point{}, fmt.Errorf("%w: step %d, track has %d samples", ErrOutOfRange, step, len(track))
	}
	return track[step-1].Position, nil
}

// SatellitePosition resolves where sat is at step.
func SatellitePosition(sat *model.Satellite, step int) (model.Point, error) {
	p, err := PositionAt(sat.Track, step)
	if err != nil {
		return model.Point{}, fmt.Errorf("satellite %q: %w", sat.ID, err)
	}
	return p, nil
}

// ApplicationPosition resolves where app is at step. Applications without a
// track are stationary and valid at any step >= 1.
func ApplicationPosition(app *model.Application, step int) (model.Point, error) {
	if !app.Mobile() {
		if step < 1 {
			return model.Point{}, fmt.Errorf("application %q: %w: step %d", app.ID, ErrOutOfRange, step)
		}
		return app.Position, nil
	}
	p, err := PositionAt(app.Track, step)
	if err != nil {
		return model.Point{}, fmt.Errorf("application %q: %w", app.ID, err)
	}
	return p, nil
}

// CommonStepCount returns the last step every satellite and every mobile
// application has a sample for. Stationary applications never limit it.
// It is 0 when nothing carries a track.
func CommonStepCount(sats []*model.Satellite, apps []*model.Application) int {
	n := -1
	shorten := func(l int) {
		if n < 0 || l < n {
			n = l
		}
	}
	for _, sat := range sats {
		shorten(len(sat.Track))
	}
	for _, app := range apps {
		if app.Mobile() {
			shorten(len(app.Track))
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// validateTrack checks samples are dense and 1-based.
func validateTrack(track []model.Sample) error {
	for i, s := range track {
		if s.Step != i+1 {
			return fmt.Errorf("%w: sample %d has step %d, want %d", ErrInvalidTrack, i, s.Step, i+1)
		}
	}
	return nil
}
