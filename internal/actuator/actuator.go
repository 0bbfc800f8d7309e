// Package actuator translates the state machine's current state into
// per-unit service calls on the home-automation platform. Each unit's
// own room sensor governs whether that unit individually turns on,
// turns off, or is left alone.
package actuator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hvac-controller/internal/gateway"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

// Actuator owns the set of enabled HVAC units and issues service
// calls through a PlatformGateway.
type Actuator struct {
	units   []model.HVACUnit
	gw      gateway.PlatformGateway
	heating model.HeatingParams
	cooling model.CoolingParams

	// lastCommand records the last command issued per unit so repeated
	// entries into the same state with unchanged readings are
	// idempotent rather than re-issuing calls.
	lastCommand map[string]string
}

// New builds an Actuator over the given enabled units.
func New(units []model.HVACUnit, gw gateway.PlatformGateway, heating model.HeatingParams, cooling model.CoolingParams) *Actuator {
	return &Actuator{
		units:       units,
		gw:          gw,
		heating:     heating,
		cooling:     cooling,
		lastCommand: make(map[string]string),
	}
}

// EnterHeating runs the per-unit heating pass over every enabled unit.
func (a *Actuator) EnterHeating(ctx context.Context) {
	for _, unit := range a.units {
		if !unit.Enabled {
			continue
		}
		a.applyHeatingPolicy(ctx, unit)
	}
}

// EnterCooling runs the per-unit cooling pass over every enabled unit.
func (a *Actuator) EnterCooling(ctx context.Context) {
	for _, unit := range a.units {
		if !unit.Enabled {
			continue
		}
		a.applyCoolingPolicy(ctx, unit)
	}
}

// StopAll releases every enabled unit's request (idle / off / entry to
// defrosting).
func (a *Actuator) StopAll(ctx context.Context) {
	for _, unit := range a.units {
		if !unit.Enabled {
			continue
		}
		a.turnOff(ctx, unit)
	}
}

func (a *Actuator) applyHeatingPolicy(ctx context.Context, unit model.HVACUnit) {
	temp, ok := a.readUnitTemp(ctx, unit)
	if !ok {
		return
	}
	t := a.heating.Thresholds
	switch {
	case temp < t.IndoorMin:
		a.turnOn(ctx, unit, "heat", a.heating.PresetMode, a.heating.Temperature)
	case temp > t.IndoorMax:
		a.turnOff(ctx, unit)
	}
	// within the band: leave as-is
}

func (a *Actuator) applyCoolingPolicy(ctx context.Context, unit model.HVACUnit) {
	temp, ok := a.readUnitTemp(ctx, unit)
	if !ok {
		return
	}
	t := a.cooling.Thresholds
	switch {
	case temp > t.IndoorMax:
		a.turnOn(ctx, unit, "cool", a.cooling.PresetMode, a.cooling.Temperature)
	case temp < t.IndoorMin:
		a.turnOff(ctx, unit)
	}
}

func (a *Actuator) readUnitTemp(ctx context.Context, unit model.HVACUnit) (float64, bool) {
	state, err := a.gw.GetState(ctx, unit.SensorID())
	if err != nil {
		log.Warn().Err(err).Str("unit", unit.Name()).Msg("skipping unit: sensor read failed")
		return 0, false
	}
	temp, ok := parseFloat(state.State)
	if !ok {
		log.Warn().Str("unit", unit.Name()).Str("state", state.State).Msg("skipping unit: sensor state not numeric")
		return 0, false
	}
	return temp, true
}

func (a *Actuator) turnOn(ctx context.Context, unit model.HVACUnit, hvacMode, presetMode string, setpoint float64) {
	cmd := commandKey(hvacMode, presetMode, setpoint)
	if a.lastCommand[unit.EntityID] == cmd {
		return
	}
	if err := a.gw.ControlEntity(ctx, unit.EntityID, "climate", "set_hvac_mode", "hvac_mode", hvacMode); err != nil {
		log.Error().Err(err).Str("unit", unit.Name()).Msg("service call failed: set_hvac_mode")
		return
	}
	if presetMode != "" {
		if err := a.gw.ControlEntity(ctx, unit.EntityID, "climate", "set_preset_mode", "preset_mode", presetMode); err != nil {
			log.Error().Err(err).Str("unit", unit.Name()).Msg("service call failed: set_preset_mode")
			return
		}
	}
	if err := a.gw.ControlEntity(ctx, unit.EntityID, "climate", "set_temperature", "temperature", setpoint); err != nil {
		log.Error().Err(err).Str("unit", unit.Name()).Msg("service call failed: set_temperature")
		return
	}
	a.lastCommand[unit.EntityID] = cmd
}

func (a *Actuator) turnOff(ctx context.Context, unit model.HVACUnit) {
	if a.lastCommand[unit.EntityID] == "off" {
		return
	}
	if err := a.gw.ControlEntity(ctx, unit.EntityID, "climate", "set_hvac_mode", "hvac_mode", "off"); err != nil {
		log.Error().Err(err).Str("unit", unit.Name()).Msg("service call failed: set_hvac_mode off")
		return
	}
	a.lastCommand[unit.EntityID] = "off"
}

func commandKey(hvacMode, presetMode string, setpoint float64) string {
	return hvacMode + "|" + presetMode + "|" + formatFloat(setpoint)
}
