package statemachine

import (
	"time"

	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

// EventKind tags the variant held by an Event. Replaces dispatch on a
// bare string event name with a closed set the compiler can check.
type EventKind int

const (
	EventAutoEvaluate EventKind = iota
	EventUpdateTemperatures
	EventUpdateConditions
	EventHeat
	EventCool
	EventOff
	EventDefrostNeeded
	EventDefrostComplete
	EventManualOverride
)

func (k EventKind) String() string {
	switch k {
	case EventAutoEvaluate:
		return "AUTO_EVALUATE"
	case EventUpdateTemperatures:
		return "UPDATE_TEMPERATURES"
	case EventUpdateConditions:
		return "UPDATE_CONDITIONS"
	case EventHeat:
		return "HEAT"
	case EventCool:
		return "COOL"
	case EventOff:
		return "OFF"
	case EventDefrostNeeded:
		return "DEFROST_NEEDED"
	case EventDefrostComplete:
		return "DEFROST_COMPLETE"
	case EventManualOverride:
		return "MANUAL_OVERRIDE"
	default:
		return "UNKNOWN"
	}
}

// Event is a tagged variant: Kind selects which payload field is valid.
type Event struct {
	Kind EventKind

	// EventUpdateTemperatures
	Indoor  *float64
	Outdoor *float64

	// EventUpdateConditions
	Hour      *int
	IsWeekday *bool

	// EventManualOverride
	OverrideMode   model.SystemMode
	OverrideTarget *float64
	OverrideExpiry *time.Time
}
