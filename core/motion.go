package core

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// EarthRadiusKm is the mean Earth radius used to project ground tracks onto
// the planar allocation frame (kilometres).
const EarthRadiusKm = 6371.0

// TLETrackBuilder samples an SGP4 orbit into a dense, 1-based planar
// ground track. Sub-satellite points are projected equirectangularly:
// x = R*lon, y = R*lat, both in kilometres.
type TLETrackBuilder struct {
	Start time.Time
	Step  time.Duration
	Steps int
}

// Build propagates the TLE and returns Steps samples starting at Start.
func (b TLETrackBuilder) Build(line1, line2 string) (track []model.Sample, err error) {
	if b.Steps <= 0 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidTrack, b.Steps)
	}
	if b.Step <= 0 {
		return nil, fmt.Errorf("%w: step interval must be positive, got %s", ErrInvalidTrack, b.Step)
	}

	// go-satellite panics on malformed element sets.
	defer func() {
		if r := recover(); r != nil {
			track, err = nil, fmt.Errorf("%w: parse TLE: %v", ErrInvalidTrack, r)
		}
	}()
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)

	track = make([]model.Sample, 0, b.Steps)
	for i := 0; i < b.Steps; i++ {
		p, err := groundPoint(sat, b.Start.Add(time.Duration(i)*b.Step).UTC())
		if err != nil {
			return nil, err
		}
		track = append(track, model.Sample{Step: i + 1, Position: p})
	}
	return track, nil
}

func groundPoint(sat satellite.Satellite, t time.Time) (model.Point, error) {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(posECI.X) || math.IsNaN(posECI.Y) || math.IsNaN(posECI.Z) {
		return model.Point{}, fmt.Errorf("%w: propagation failed at %s", ErrInvalidTrack, t.Format(time.RFC3339))
	}
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	_, _, lla := satellite.ECIToLLA(posECI, gmst)

	return model.Point{
		X: EarthRadiusKm * wrapLongitude(lla.Longitude),
		Y: EarthRadiusKm * lla.Latitude,
	}, nil
}

// wrapLongitude folds radians into [-pi, pi).
func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+math.Pi, 2*math.Pi)
	if lon < 0 {
		lon += 2 * math.Pi
	}
	return lon - math.Pi
}
