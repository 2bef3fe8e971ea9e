package model

// Application is a workload that wants to run on one satellite.
//
// Position is used for every step unless Track is non-empty, in which case
// the application moves with the same 1-based indexing as satellites.
type Application struct {
	ID       string
	CPU      int
	Memory   int
	Position Point
	Track    []Sample
}

// Mobile reports whether the application carries its own trajectory.
func (a *Application) Mobile() bool {
	return len(a.Track) > 0
}
