package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/libya-atlas/model"
)

var (
	// ErrMunicipalityExists indicates a municipality name was loaded twice.
	ErrMunicipalityExists = errors.New("municipality already exists")
	// ErrMunicipalityNotFound indicates a requested municipality is absent.
	ErrMunicipalityNotFound = errors.New("municipality not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	// EventReloaded fires after Load replaced the store contents and the
	// region index was rebuilt.
	EventReloaded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type           EventType
	Municipalities int
	Districts      int
}

// RegionSummary aggregates the members of one region.
type RegionSummary struct {
	Region          model.Region
	Count           int
	TotalPopulation int

	// Bound is the lon/lat box of the members; only meaningful when Count > 0.
	Bound orb.Bound
}

// Centroid returns the centre of the summary's bounding box.
func (s RegionSummary) Centroid() (lon, lat float64, ok bool) {
	if s.Count == 0 {
		return 0, 0, false
	}
	c := s.Bound.Center()
	return c.Lon(), c.Lat(), true
}

// KnowledgeBase is an in-memory, thread-safe store for municipalities and
// district boundaries. It is written once per load and read by every view
// session.
type KnowledgeBase struct {
	mu sync.RWMutex

	municipalities []model.Municipality
	byName         map[string]int

	// regionIndex is derived from municipalities and only rebuilt by Load.
	regionIndex map[model.Region][]int
	summaries   map[model.Region]RegionSummary

	districts []model.District

	nextSub int
	subs    map[int]func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		byName:      make(map[string]int),
		regionIndex: make(map[model.Region][]int),
		summaries:   make(map[model.Region]RegionSummary),
		subs:        make(map[int]func(Event)),
	}
}

// Load replaces the store contents. Municipalities keep their slice order,
// which becomes their load Order. Duplicate names are skipped and reported
// in the returned error; the remaining rows are still loaded.
func (kb *KnowledgeBase) Load(municipalities []model.Municipality, districts []model.District) error {
	kb.mu.Lock()

	var errs []error
	kb.municipalities = make([]model.Municipality, 0, len(municipalities))
	kb.byName = make(map[string]int, len(municipalities))
	for _, m := range municipalities {
		if _, exists := kb.byName[m.Name]; exists {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMunicipalityExists, m.Name))
			continue
		}
		m.Order = len(kb.municipalities)
		kb.byName[m.Name] = m.Order
		kb.municipalities = append(kb.municipalities, m)
	}
	kb.districts = append([]model.District(nil), districts...)
	kb.rebuildIndexLocked()

	event := Event{
		Type:           EventReloaded,
		Municipalities: len(kb.municipalities),
		Districts:      len(kb.districts),
	}
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		subs = append(subs, fn)
	}
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return errors.Join(errs...)
}

func (kb *KnowledgeBase) rebuildIndexLocked() {
	kb.regionIndex = make(map[model.Region][]int)
	kb.summaries = make(map[model.Region]RegionSummary)
	for i, m := range kb.municipalities {
		kb.regionIndex[m.Region] = append(kb.regionIndex[m.Region], i)

		s := kb.summaries[m.Region]
		pt := orb.Point{m.Lon, m.Lat}
		if s.Count == 0 {
			s.Region = m.Region
			s.Bound = orb.Bound{Min: pt, Max: pt}
		} else {
			s.Bound = s.Bound.Extend(pt)
		}
		s.Count++
		s.TotalPopulation += m.Population
		kb.summaries[m.Region] = s
	}
}

// GetMunicipality returns the municipality with the given name.
func (kb *KnowledgeBase) GetMunicipality(name string) (model.Municipality, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	idx, ok := kb.byName[name]
	if !ok {
		return model.Municipality{}, fmt.Errorf("%w: %q", ErrMunicipalityNotFound, name)
	}
	return kb.municipalities[idx], nil
}

// ListMunicipalities returns a snapshot of all municipalities in load order.
func (kb *KnowledgeBase) ListMunicipalities() []model.Municipality {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]model.Municipality(nil), kb.municipalities...)
}

// Len returns the number of stored municipalities.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.municipalities)
}

// ListByRegion returns the members of r in load order.
func (kb *KnowledgeBase) ListByRegion(r model.Region) []model.Municipality {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	idxs := kb.regionIndex[r]
	res := make([]model.Municipality, 0, len(idxs))
	for _, i := range idxs {
		res = append(res, kb.municipalities[i])
	}
	return res
}

// Summary returns the cached aggregate for r. A region without members
// yields a zero-count summary.
func (kb *KnowledgeBase) Summary(r model.Region) RegionSummary {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	s, ok := kb.summaries[r]
	if !ok {
		return RegionSummary{Region: r}
	}
	return s
}

// ListDistricts returns a snapshot of the district boundaries.
func (kb *KnowledgeBase) ListDistricts() []model.District {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]model.District(nil), kb.districts...)
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}
