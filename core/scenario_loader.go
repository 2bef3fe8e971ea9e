package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// Scenario is the decoded contents of a scenario file.
type Scenario struct {
	Dataset      string
	Satellites   []*model.Satellite
	Applications []*model.Application
}

// StepCount returns the last step every satellite and mobile application
// can answer for.
func (s *Scenario) StepCount() int {
	return CommonStepCount(s.Satellites, s.Applications)
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
type scenarioJSON struct {
	Dataset      string            `json:"dataset"`
	Satellites   []satelliteJSON   `json:"satellites"`
	Applications []applicationJSON `json:"applications"`
}

type satelliteJSON struct {
	ID             string       `json:"id"`
	CPU            int          `json:"cpu"`
	Memory         int          `json:"memory"`
	CoverageRadius float64      `json:"coverage_radius"`
	Positions      []sampleJSON `json:"positions"`
	TLE            *tleJSON     `json:"tle"`
}

type tleJSON struct {
	Line1       string    `json:"line1"`
	Line2       string    `json:"line2"`
	Start       time.Time `json:"start"`
	StepSeconds float64   `json:"step_seconds"`
	Steps       int       `json:"steps"`
}

type applicationJSON struct {
	ID        string       `json:"id"`
	CPU       int          `json:"cpu"`
	Memory    int          `json:"memory"`
	Position  *pointJSON   `json:"position"`
	Positions []sampleJSON `json:"positions"`
}

type sampleJSON struct {
	T int     `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DecodeScenario reads a JSON scenario from r. Satellites carry either an
// explicit "positions" list or a "tle" block that is propagated into one.
// Every satellite and application is validated before returning.
func DecodeScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("DecodeScenario: decode failed: %w", err)
	}

	sc := &Scenario{
		Dataset:      payload.Dataset,
		Satellites:   make([]*model.Satellite, 0, len(payload.Satellites)),
		Applications: make([]*model.Application, 0, len(payload.Applications)),
	}

	for _, js := range payload.Satellites {
		sat := &model.Satellite{
			ID:             js.ID,
			CPU:            js.CPU,
			Memory:         js.Memory,
			CoverageRadius: js.CoverageRadius,
		}
		switch {
		case js.TLE != nil && len(js.Positions) > 0:
			return nil, fmt.Errorf("DecodeScenario: satellite %q: %w: both tle and positions given", js.ID, ErrInvalidTrack)
		case js.TLE != nil:
			builder := TLETrackBuilder{
				Start: js.TLE.Start,
				Step:  time.Duration(js.TLE.StepSeconds * float64(time.Second)),
				Steps: js.TLE.Steps,
			}
			track, err := builder.Build(js.TLE.Line1, js.TLE.Line2)
			if err != nil {
				return nil, fmt.Errorf("DecodeScenario: satellite %q: %w", js.ID, err)
			}
			sat.Track = track
		default:
			sat.Track = samplesFromJSON(js.Positions)
		}
		if err := ValidateSatellite(sat); err != nil {
			return nil, fmt.Errorf("DecodeScenario: %w", err)
		}
		sc.Satellites = append(sc.Satellites, sat)
	}

	for _, ja := range payload.Applications {
		app := &model.Application{
			ID:     ja.ID,
			CPU:    ja.CPU,
			Memory: ja.Memory,
			Track:  samplesFromJSON(ja.Positions),
		}
		if ja.Position != nil {
			app.Position = model.Point{X: ja.Position.X, Y: ja.Position.Y}
		}
		if err := ValidateApplication(app); err != nil {
			return nil, fmt.Errorf("DecodeScenario: %w", err)
		}
		sc.Applications = append(sc.Applications, app)
	}

	return sc, nil
}

// samplesFromJSON keeps file order; density is checked by validation so a
// gap or a reordering is reported rather than silently repaired.
func samplesFromJSON(in []sampleJSON) []model.Sample {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Sample, 0, len(in))
	for _, s := range in {
		out = append(out, model.Sample{Step: s.T, Position: model.Point{X: s.X, Y: s.Y}})
	}
	return out
}
