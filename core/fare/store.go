package fare

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/lastmile/core/model"
)

// Settings is the full pricing configuration: one schedule per vehicle class
// plus the global surcharge parameters.
type Settings struct {
	Schedules  map[model.VehicleClass]TieredRateSchedule `json:"schedules" yaml:"schedules"`
	Surcharges SurchargeParams                           `json:"surcharges" yaml:"surcharges"`
}

func (s Settings) normalized() Settings {
	out := s.Clone()
	for c, sc := range out.Schedules {
		out.Schedules[c] = sc.normalized()
	}
	return out
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	out := Settings{
		Schedules:  make(map[model.VehicleClass]TieredRateSchedule, len(s.Schedules)),
		Surcharges: s.Surcharges.Clone(),
	}
	for c, sc := range s.Schedules {
		out.Schedules[c] = sc.Clone()
	}
	return out
}

// Validate checks every schedule and the surcharge parameters.
func (s Settings) Validate() error {
	classes := make([]string, 0, len(s.Schedules))
	for c := range s.Schedules {
		classes = append(classes, string(c))
	}
	sort.Strings(classes)
	for _, name := range classes {
		c := model.VehicleClass(name)
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownVehicleClass, name)
		}
		if err := s.Schedules[c].Validate(); err != nil {
			if se, ok := err.(*ScheduleError); ok {
				return &ScheduleError{Field: "schedules." + name + "." + se.Field, Reason: se.Reason}
			}
			return err
		}
	}
	return s.Surcharges.Validate()
}

// SettingsStore holds the pricing settings used by the engine and the admin API.
type SettingsStore interface {
	GetSchedule(class model.VehicleClass) (TieredRateSchedule, error)
	UpdateSchedule(class model.VehicleClass, s TieredRateSchedule) error
	Surcharges() SurchargeParams
	UpdateSurcharges(p SurchargeParams) error
	Settings() Settings
}

// MemoryStore is an in-memory SettingsStore. Updates are validated first and
// replace the previous value atomically.
type MemoryStore struct {
	mu       sync.RWMutex
	settings Settings
}

// NewMemoryStore validates s and returns a store holding a copy of it.
func NewMemoryStore(s Settings) (*MemoryStore, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{settings: s.normalized()}, nil
}

func (m *MemoryStore) GetSchedule(class model.VehicleClass) (TieredRateSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.settings.Schedules[class]
	if !ok {
		return TieredRateSchedule{}, fmt.Errorf("%w: %q", ErrUnknownVehicleClass, class)
	}
	return sc.Clone(), nil
}

func (m *MemoryStore) UpdateSchedule(class model.VehicleClass, s TieredRateSchedule) error {
	if !class.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownVehicleClass, class)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	next := m.settings.Clone()
	next.Schedules[class] = s.normalized()
	m.settings = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Surcharges() SurchargeParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Surcharges.Clone()
}

func (m *MemoryStore) UpdateSurcharges(p SurchargeParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	next := m.settings.Clone()
	next.Surcharges = p.Clone()
	m.settings = next
	m.mu.Unlock()
	return nil
}

// Settings returns a copy of the full settings.
func (m *MemoryStore) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Clone()
}

// Replace validates s and swaps it in as a whole.
func (m *MemoryStore) Replace(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.settings = s.normalized()
	m.mu.Unlock()
	return nil
}
