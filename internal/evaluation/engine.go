// Package evaluation implements the hysteretic evaluation engine: a
// pure function deciding whether the HVAC system should heat, cool,
// or defrost, given a temperature/calendar snapshot. It has no side
// effects and consults no collaborator other than its own config.
package evaluation

import (
	"github.com/rs/zerolog/log"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

// Engine evaluates StateChangeData against heating/cooling/defrost
// configuration. Its only mutable state is the flag that limits the
// overlap warning to one log line per Engine; that flag is not
// synchronized, so concurrent Evaluate calls need the caller's lock
// (the state machine holds its own). lastDefrost lives in the
// caller's HVACContext.
type Engine struct {
	Heating     model.HeatingParams
	Cooling     model.CoolingParams
	ActiveHours *model.ActiveHours

	warnedOverlap bool
}

// New builds an Engine from heating/cooling configuration and an
// optional active-hours window.
func New(heating model.HeatingParams, cooling model.CoolingParams, activeHours *model.ActiveHours) *Engine {
	return &Engine{Heating: heating, Cooling: cooling, ActiveHours: activeHours}
}

// Evaluate is the pure hysteretic decision function: given the current
// indoor/outdoor readings, time, and defrost state, it decides whether
// the system as a whole should heat, cool, or defrost. Per-unit
// decisions are the actuator's.
func (e *Engine) Evaluate(data model.StateChangeData) model.EvaluationResult {
	inWindow := e.inActiveHours(data.Hour, data.IsWeekday)

	shouldHeat := e.shouldHeat(data, inWindow)
	shouldCool := e.shouldCool(data, inWindow)

	if shouldHeat && shouldCool {
		if !e.warnedOverlap {
			log.Warn().Msg("heating and cooling bands overlap; heating takes priority")
			e.warnedOverlap = true
		}
		shouldCool = false
	}

	needsDefrost := e.needsDefrost(data)

	reason := reasonFor(shouldHeat, shouldCool, needsDefrost, inWindow)

	return model.EvaluationResult{
		ShouldHeat:   shouldHeat,
		ShouldCool:   shouldCool,
		NeedsDefrost: needsDefrost,
		Reason:       reason,
	}
}

func (e *Engine) shouldHeat(data model.StateChangeData, inWindow bool) bool {
	t := e.Heating.Thresholds
	if data.CurrentTemp >= t.IndoorMin {
		return false
	}
	if data.WeatherTemp < t.OutdoorMin || data.WeatherTemp > t.OutdoorMax {
		return false
	}
	return inWindow
}

func (e *Engine) shouldCool(data model.StateChangeData, inWindow bool) bool {
	t := e.Cooling.Thresholds
	if data.CurrentTemp <= t.IndoorMax {
		return false
	}
	if data.WeatherTemp < t.OutdoorMin || data.WeatherTemp > t.OutdoorMax {
		return false
	}
	return inWindow
}

func (e *Engine) needsDefrost(data model.StateChangeData) bool {
	d := e.Heating.Defrost
	if d == nil {
		return false
	}
	if data.WeatherTemp >= d.TemperatureThreshold {
		return false
	}
	if data.LastDefrost == nil {
		return true
	}
	elapsed := data.Now.Sub(*data.LastDefrost)
	return elapsed.Seconds() >= float64(d.PeriodSeconds)
}

// inActiveHours reports whether the current hour falls inside the
// configured active-hours window. No configured window means the
// check always passes.
func (e *Engine) inActiveHours(hour int, isWeekday bool) bool {
	if e.ActiveHours == nil {
		return true
	}
	start := e.ActiveHours.Start
	if isWeekday {
		start = e.ActiveHours.StartWeekday
	}
	end := e.ActiveHours.End

	if start <= end {
		return hour >= start && hour <= end
	}
	// window spans midnight
	return hour >= start || hour <= end
}

func reasonFor(shouldHeat, shouldCool, needsDefrost, inWindow bool) string {
	switch {
	case needsDefrost:
		return "defrost needed"
	case shouldHeat:
		return "indoor temp below heating minimum within active hours and outdoor range"
	case shouldCool:
		return "indoor temp above cooling maximum within active hours and outdoor range"
	case !inWindow:
		return "outside active hours"
	default:
		return "within hysteresis band"
	}
}
