// Package model holds the core domain types shared across the HVAC
// controller: system mode, unit descriptors, evaluation context, and
// the data the state machine and cycling monitor operate on.
package model

import "time"

// SystemMode restricts which state-machine transitions are legal.
type SystemMode string

const (
	ModeAuto     SystemMode = "auto"
	ModeHeatOnly SystemMode = "heat_only"
	ModeCoolOnly SystemMode = "cool_only"
	ModeOff      SystemMode = "off"
)

// HVACState is one of the finite states the state machine occupies.
type HVACState string

const (
	StateIdle           HVACState = "idle"
	StateEvaluating     HVACState = "evaluating"
	StateOff            HVACState = "off"
	StateHeating        HVACState = "heating"
	StateCooling        HVACState = "cooling"
	StateDefrosting     HVACState = "defrosting"
	StateManualOverride HVACState = "manual_override"
)

// HVACUnit describes one controllable climate entity and its own
// room sensor, derived from the entity id by convention.
type HVACUnit struct {
	EntityID        string // e.g. "climate.living_room"
	Enabled         bool
	SupportsDefrost bool
}

// Name returns the unit's bare name, the part of EntityID after the dot.
func (u HVACUnit) Name() string {
	for i := 0; i < len(u.EntityID); i++ {
		if u.EntityID[i] == '.' {
			return u.EntityID[i+1:]
		}
	}
	return u.EntityID
}

// SensorID returns the derived room-temperature sensor id for this unit.
func (u HVACUnit) SensorID() string {
	return "sensor." + u.Name() + "_temperature"
}

// Thresholds bounds a heating or cooling decision, indoor and outdoor.
type Thresholds struct {
	IndoorMin  float64
	IndoorMax  float64
	OutdoorMin float64
	OutdoorMax float64
}

// Defrost configures the defrost cycle for a heating configuration.
type Defrost struct {
	TemperatureThreshold float64
	PeriodSeconds        int
	DurationSeconds       int
}

// HeatingParams is the heating-side configuration.
type HeatingParams struct {
	Temperature float64
	PresetMode  string
	Thresholds  Thresholds
	Defrost     *Defrost
}

// CoolingParams is the cooling-side configuration.
type CoolingParams struct {
	Temperature float64
	PresetMode  string
	Thresholds  Thresholds
}

// ActiveHours bounds the hours of day the controller may heat or cool.
type ActiveHours struct {
	Start        int // hour, weekend/default
	StartWeekday int // hour, used when IsWeekday is true
	End          int
}

// StateChangeData is the pure-function input to the Evaluation Engine.
type StateChangeData struct {
	CurrentTemp float64
	WeatherTemp float64
	Hour        int
	IsWeekday   bool
	LastDefrost *time.Time
	Now         time.Time
}

// EvaluationResult is the pure-function output of the Evaluation Engine.
type EvaluationResult struct {
	ShouldHeat   bool
	ShouldCool   bool
	NeedsDefrost bool
	Reason       string
}

// ManualOverride pins the system to a specific mode until cleared.
type ManualOverride struct {
	Mode       SystemMode
	TargetTemp *float64
	ExpiresAt  *time.Time
}

// HVACContext is the mutable context the state machine consults on
// every evaluation. Mutated only by the controller loop.
type HVACContext struct {
	IndoorTemp  *float64
	OutdoorTemp *float64
	CurrentHour int
	IsWeekday   bool
	LastDefrost *time.Time
	SystemMode  SystemMode
	Override    *ManualOverride
}

// StateChangeRecord is one entry in the cycling monitor's ring buffer.
type StateChangeRecord struct {
	Timestamp   time.Time
	FromState   HVACState
	ToState     HVACState
	Temperature float64
}

// DefrostTimer tracks one active defrost cycle. Owned by the state
// machine; fires exactly once.
type DefrostTimer struct {
	StartedAt       time.Time
	DurationSeconds int
	PeriodSeconds   int
}
