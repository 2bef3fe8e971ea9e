package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/model"
)

var (
	ErrSatelliteExists     = errors.New("satellite already exists")
	ErrSatelliteNotFound   = errors.New("satellite not found")
	ErrApplicationExists   = errors.New("application already exists")
	ErrApplicationNotFound = errors.New("application not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventSatelliteAdded EventType = iota
	EventSatelliteRemoved
	EventApplicationAdded
	EventApplicationRemoved
	EventReset
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	ID   string

	Satellites   int
	Applications int
}

// KnowledgeBase is an in-memory, thread-safe store for the constellation
// and the applications waiting to be placed. Listing preserves insertion
// order, which the allocators use for tie-breaking.
type KnowledgeBase struct {
	mu sync.RWMutex

	dataset string

	satellites   map[string]*model.Satellite
	satOrder     []string
	applications map[string]*model.Application
	appOrder     []string

	subs map[int]func(Event)
	next int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		satellites:   make(map[string]*model.Satellite),
		applications: make(map[string]*model.Application),
		subs:         make(map[int]func(Event)),
	}
}

// Dataset returns the name of the loaded scenario, if any.
func (kb *KnowledgeBase) Dataset() string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.dataset
}

// AddSatellite validates and stores a copy of sat.
func (kb *KnowledgeBase) AddSatellite(sat *model.Satellite) error {
	if err := core.ValidateSatellite(sat); err != nil {
		return err
	}

	kb.mu.Lock()
	if _, exists := kb.satellites[sat.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSatelliteExists, sat.ID)
	}
	kb.satellites[sat.ID] = sat.Clone()
	kb.satOrder = append(kb.satOrder, sat.ID)
	ev := kb.eventLocked(EventSatelliteAdded, sat.ID)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// AddApplication validates and stores a copy of app.
func (kb *KnowledgeBase) AddApplication(app *model.Application) error {
	if err := core.ValidateApplication(app); err != nil {
		return err
	}

	kb.mu.Lock()
	if _, exists := kb.applications[app.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrApplicationExists, app.ID)
	}
	cp := *app
	cp.Track = append([]model.Sample(nil), app.Track...)
	kb.applications[app.ID] = &cp
	kb.appOrder = append(kb.appOrder, app.ID)
	ev := kb.eventLocked(EventApplicationAdded, app.ID)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// RemoveSatellite deletes a satellite by ID.
func (kb *KnowledgeBase) RemoveSatellite(id string) error {
	kb.mu.Lock()
	if _, ok := kb.satellites[id]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSatelliteNotFound, id)
	}
	delete(kb.satellites, id)
	kb.satOrder = removeID(kb.satOrder, id)
	ev := kb.eventLocked(EventSatelliteRemoved, id)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// RemoveApplication deletes an application by ID.
func (kb *KnowledgeBase) RemoveApplication(id string) error {
	kb.mu.Lock()
	if _, ok := kb.applications[id]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrApplicationNotFound, id)
	}
	delete(kb.applications, id)
	kb.appOrder = removeID(kb.appOrder, id)
	ev := kb.eventLocked(EventApplicationRemoved, id)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// LoadScenario replaces the KB contents with sc. On error the KB is left
// unchanged.
func (kb *KnowledgeBase) LoadScenario(sc *core.Scenario) error {
	if sc == nil {
		return fmt.Errorf("LoadScenario: nil scenario")
	}
	if _, err := core.NewSnapshot(sc.Satellites, core.Limits{}); err != nil {
		return fmt.Errorf("LoadScenario: %w", err)
	}
	if err := core.ValidateApplications(sc.Applications, core.Limits{}); err != nil {
		return fmt.Errorf("LoadScenario: %w", err)
	}

	kb.mu.Lock()
	kb.dataset = sc.Dataset
	kb.satellites = make(map[string]*model.Satellite, len(sc.Satellites))
	kb.satOrder = kb.satOrder[:0]
	for _, sat := range sc.Satellites {
		kb.satellites[sat.ID] = sat.Clone()
		kb.satOrder = append(kb.satOrder, sat.ID)
	}
	kb.applications = make(map[string]*model.Application, len(sc.Applications))
	kb.appOrder = kb.appOrder[:0]
	for _, app := range sc.Applications {
		cp := *app
		cp.Track = append([]model.Sample(nil), app.Track...)
		kb.applications[app.ID] = &cp
		kb.appOrder = append(kb.appOrder, app.ID)
	}
	ev := kb.eventLocked(EventReset, sc.Dataset)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// GetSatellite returns a copy of the satellite with the given ID, or nil.
func (kb *KnowledgeBase) GetSatellite(id string) *model.Satellite {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.satellites[id].Clone()
}

// ListSatellites returns copies of all satellites in insertion order.
func (kb *KnowledgeBase) ListSatellites() []*model.Satellite {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Satellite, 0, len(kb.satOrder))
	for _, id := range kb.satOrder {
		res = append(res, kb.satellites[id].Clone())
	}
	return res
}

// ListApplications returns all applications in insertion order. Demand is
// immutable so the pointers are shared.
func (kb *KnowledgeBase) ListApplications() []*model.Application {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Application, 0, len(kb.appOrder))
	for _, id := range kb.appOrder {
		res = append(res, kb.applications[id])
	}
	return res
}

// StepCount returns the last step every satellite and every mobile
// application has a sample for.
func (kb *KnowledgeBase) StepCount() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	sats := make([]*model.Satellite, 0, len(kb.satOrder))
	for _, id := range kb.satOrder {
		sats = append(sats, kb.satellites[id])
	}
	apps := make([]*model.Application, 0, len(kb.appOrder))
	for _, id := range kb.appOrder {
		apps = append(apps, kb.applications[id])
	}
	return core.CommonStepCount(sats, apps)
}

// Snapshot materializes a fresh constellation snapshot. Each call returns
// an independent ledger.
func (kb *KnowledgeBase) Snapshot(limits core.Limits) (*core.Snapshot, error) {
	return core.NewSnapshot(kb.ListSatellites(), limits)
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.next
	kb.next++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) eventLocked(t EventType, id string) Event {
	return Event{
		Type:         t,
		ID:           id,
		Satellites:   len(kb.satOrder),
		Applications: len(kb.appOrder),
	}
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	out := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		out = append(out, fn)
	}
	return out
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
