package core

import (
	"fmt"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// Limits bounds the size of an allocation run. Zero means unlimited.
type Limits struct {
	MaxSatellites   int
	MaxApplications int
}

// ValidateSatellite rejects negative capacities or radius, and tracks that
// are not dense and 1-based.
func ValidateSatellite(sat *model.Satellite) error {
	if sat == nil {
		return fmt.Errorf("%w: nil satellite", ErrInvalidDemand)
	}
	if sat.ID == "" {
		return fmt.Errorf("satellite: %w", ErrEmptyID)
	}
	if sat.CPU < 0 || sat.Memory < 0 {
		return fmt.Errorf("%w: satellite %q has negative capacity (cpu=%d, memory=%d)", ErrInvalidDemand, sat.ID, sat.CPU, sat.Memory)
	}
	if sat.CoverageRadius < 0 {
		return fmt.Errorf("%w: satellite %q has negative coverage radius %g", ErrInvalidDemand, sat.ID, sat.CoverageRadius)
	}
	if err := validateTrack(sat.Track); err != nil {
		return fmt.Errorf("satellite %q: %w", sat.ID, err)
	}
	return nil
}

// ValidateApplication rejects negative demand and malformed tracks.
func ValidateApplication(app *model.Application) error {
	if app == nil {
		return fmt.Errorf("%w: nil application", ErrInvalidDemand)
	}
	if app.ID == "" {
		return fmt.Errorf("application: %w", ErrEmptyID)
	}
	if app.CPU < 0 || app.Memory < 0 {
		return fmt.Errorf("%w: application %q (cpu=%d, memory=%d)", ErrInvalidDemand, app.ID, app.CPU, app.Memory)
	}
	if err := validateTrack(app.Track); err != nil {
		return fmt.Errorf("application %q: %w", app.ID, err)
	}
	return nil
}

// ValidateApplications checks every application, unique IDs, and the
// configured application limit.
func ValidateApplications(apps []*model.Application, limits Limits) error {
	if limits.MaxApplications > 0 && len(apps) > limits.MaxApplications {
		return fmt.Errorf("%w: %d applications, max %d", ErrLimitExceeded, len(apps), limits.MaxApplications)
	}
	seen := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if err := ValidateApplication(app); err != nil {
			return err
		}
		if _, dup := seen[app.ID]; dup {
			return fmt.Errorf("%w: application %q", ErrDuplicateID, app.ID)
		}
		seen[app.ID] = struct{}{}
	}
	return nil
}
