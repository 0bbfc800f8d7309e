package statemachine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hvac-controller/internal/clock"
	"github.com/thatsimonsguy/hvac-controller/internal/evaluation"
	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

func newTestEngine() *evaluation.Engine {
	heating := model.HeatingParams{
		Thresholds: model.Thresholds{IndoorMin: 19, IndoorMax: 22, OutdoorMin: -10, OutdoorMax: 15},
	}
	cooling := model.CoolingParams{
		Thresholds: model.Thresholds{IndoorMin: 23, IndoorMax: 26, OutdoorMin: 10, OutdoorMax: 45},
	}
	activeHours := &model.ActiveHours{Start: 7, StartWeekday: 7, End: 22}
	return evaluation.New(heating, cooling, activeHours)
}

func f(v float64) *float64 { return &v }

func setTemps(t *testing.T, m *Machine, indoor, outdoor float64) {
	t.Helper()
	err := m.Send(Event{Kind: EventUpdateTemperatures, Indoor: f(indoor), Outdoor: f(outdoor)})
	require.NoError(t, err)
}

// Scenario 1
func TestScenario1_EndsHeating(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)) // Monday
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: 10, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 18.0, 5.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))

	assert.Equal(t, model.StateHeating, m.State())
}

// Scenario 2
func TestScenario2_EndsOff(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: 10, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 20.5, 5.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))

	assert.Equal(t, model.StateOff, m.State())
}

// Scenario 3
func TestScenario3_EndsCooling(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: 14, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 27.0, 30.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))

	assert.Equal(t, model.StateCooling, m.State())
}

// SystemMode restriction
func TestScenario4_HeatOnly_NeverCools(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeHeatOnly, CurrentHour: 14, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 27.0, 30.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))

	assert.Equal(t, model.StateOff, m.State())
}

func TestSystemModeCoolOnly_NeverHeats(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeCoolOnly, CurrentHour: 10, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 18.0, 5.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))

	assert.NotEqual(t, model.StateHeating, m.State())
}

func TestSystemModeOff_NeverHeatsOrCools(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeOff, CurrentHour: 10, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 18.0, 5.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))
	assert.Equal(t, model.StateOff, m.State())
}

// Scenario 5: defrost cycle
func TestScenario5_Defrost(t *testing.T) {
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	engine := evaluation.New(
		model.HeatingParams{
			Thresholds: model.Thresholds{IndoorMin: 19, IndoorMax: 22, OutdoorMin: -10, OutdoorMax: 15},
			Defrost:    &model.Defrost{TemperatureThreshold: 0, PeriodSeconds: 3600, DurationSeconds: 300},
		},
		model.CoolingParams{Thresholds: model.Thresholds{IndoorMin: 23, IndoorMax: 26, OutdoorMin: 10, OutdoorMax: 45}},
		nil,
	)
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: 8, IsWeekday: true}
	m := New(engine, clk, 300*time.Second, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 18.0, -5.0)
	require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))
	require.Equal(t, model.StateHeating, m.State())

	require.NoError(t, m.Send(Event{Kind: EventDefrostNeeded}))
	assert.Equal(t, model.StateDefrosting, m.State())

	// explicit DEFROST_COMPLETE
	require.NoError(t, m.Send(Event{Kind: EventDefrostComplete}))
	assert.Equal(t, model.StateHeating, m.State())

	// timer-based resume; another defrost may start only once
	// periodSeconds have passed since the last one
	clk.Advance(3600 * time.Second)
	require.NoError(t, m.Send(Event{Kind: EventDefrostNeeded}))
	require.Equal(t, model.StateDefrosting, m.State())
	clk.Advance(301 * time.Second)
	m.PollDefrostTimer()
	assert.Equal(t, model.StateHeating, m.State())
}

func TestFailure_EventToStoppedMachine(t *testing.T) {
	clk := clock.NewFake(time.Now())
	m := New(newTestEngine(), clk, 0, model.HVACContext{SystemMode: model.ModeAuto})
	err := m.Send(Event{Kind: EventAutoEvaluate})
	require.Error(t, err)
	var stateErr *herrors.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, herrors.ReasonNotRunning, stateErr.Reason)
}

func TestFailure_StartAlreadyRunning(t *testing.T) {
	clk := clock.NewFake(time.Now())
	m := New(newTestEngine(), clk, 0, model.HVACContext{SystemMode: model.ModeAuto})
	require.NoError(t, m.Start())
	err := m.Start()
	require.Error(t, err)
	var stateErr *herrors.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, herrors.ReasonAlreadyRunning, stateErr.Reason)
}

func TestNonFiniteTemperature_Dropped(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: 10, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	setTemps(t, m, 18.0, 5.0)
	before := m.Context()

	nan := math.NaN()
	require.NoError(t, m.Send(Event{Kind: EventUpdateTemperatures, Indoor: &nan}))

	after := m.Context()
	assert.Equal(t, *before.IndoorTemp, *after.IndoorTemp, "non-finite update must be dropped, preserving prior context")

	var validationErr *herrors.ValidationError
	require.ErrorAs(t, m.LastValidationError(), &validationErr)
	assert.Equal(t, "indoor", validationErr.Field)
}

// Hysteresis stability across a sequence of updates
// strictly inside the band must yield at most one HEAT<->non-HEAT
// transition.
func TestHysteresisStability(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: 10, IsWeekday: true}
	m := New(newTestEngine(), clk, 0, ctx)
	require.NoError(t, m.Start())

	transitions := 0
	wasHeating := false

	temps := []float64{19.5, 20.0, 19.8, 20.5, 19.6, 21.9, 20.1}
	for _, temp := range temps {
		setTemps(t, m, temp, 5.0)
		require.NoError(t, m.Send(Event{Kind: EventAutoEvaluate}))
		isHeating := m.State() == model.StateHeating
		if isHeating != wasHeating {
			transitions++
			wasHeating = isHeating
		}
	}
	assert.LessOrEqual(t, transitions, 1)
}
