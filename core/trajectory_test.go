package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/constellation-allocator/model"
)

func TestPositionAt(t *testing.T) {
	track := []model.Sample{
		{Step: 1, Position: model.Point{X: 1, Y: 1}},
		{Step: 2, Position: model.Point{X: 2, Y: 4}},
	}
	p, err := PositionAt(track, 2)
	if err != nil {
		t.Fatalf("PositionAt error: %v", err)
	}
	if p != (model.Point{X: 2, Y: 4}) {
		t.Fatalf("PositionAt(2) = %+v, want {2 4}", p)
	}

	for _, step := range []int{0, -1, 3} {
		if _, err := PositionAt(track, step); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("PositionAt(%d) error = %v, want ErrOutOfRange", step, err)
		}
	}
}

func TestApplicationPosition(t *testing.T) {
	fixed := app("fixed", 1, 1, 7, 8)
	p, err := ApplicationPosition(fixed, 99)
	if err != nil || p != (model.Point{X: 7, Y: 8}) {
		t.Fatalf("fixed application position = %+v, %v", p, err)
	}
	if _, err := ApplicationPosition(fixed, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("step 0 error = %v, want ErrOutOfRange", err)
	}

	mobile := &model.Application{ID: "m", Track: []model.Sample{{Step: 1, Position: model.Point{X: 5}}}}
	if p, _ := ApplicationPosition(mobile, 1); p.X != 5 {
		t.Fatalf("mobile application position = %+v, want x=5", p)
	}
	if _, err := ApplicationPosition(mobile, 2); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("mobile step 2 error = %v, want ErrOutOfRange", err)
	}
}

func TestCommonStepCount(t *testing.T) {
	if got := CommonStepCount(nil, nil); got != 0 {
		t.Fatalf("empty CommonStepCount = %d, want 0", got)
	}
	sats := []*model.Satellite{stationary("a", 1, 1, 1, 0, 0, 4), stationary("b", 1, 1, 1, 0, 0, 3)}
	fixed := app("fixed", 1, 1, 0, 0)
	if got := CommonStepCount(sats, []*model.Application{fixed}); got != 3 {
		t.Fatalf("CommonStepCount with a stationary application = %d, want 3", got)
	}
	mobile := &model.Application{ID: "m", Track: []model.Sample{{Step: 1}, {Step: 2}}}
	if got := CommonStepCount(sats, []*model.Application{fixed, mobile}); got != 2 {
		t.Fatalf("CommonStepCount with a 2-sample application = %d, want 2", got)
	}
	if got := CommonStepCount(nil, []*model.Application{mobile}); got != 2 {
		t.Fatalf("CommonStepCount without satellites = %d, want 2", got)
	}
}

func TestValidateTrack(t *testing.T) {
	if err := validateTrack(nil); err != nil {
		t.Fatalf("empty track should be valid, got %v", err)
	}
	ok := []model.Sample{{Step: 1}, {Step: 2}, {Step: 3}}
	if err := validateTrack(ok); err != nil {
		t.Fatalf("dense track rejected: %v", err)
	}
	for name, bad := range map[string][]model.Sample{
		"zero-based": {{Step: 0}, {Step: 1}},
		"gap":        {{Step: 1}, {Step: 3}},
		"reordered":  {{Step: 2}, {Step: 1}},
	} {
		if err := validateTrack(bad); !errors.Is(err, ErrInvalidTrack) {
			t.Fatalf("%s: error = %v, want ErrInvalidTrack", name, err)
		}
	}
}
