// Package statemachine implements the HVAC controller's finite state
// machine: an explicit state field and a dispatch function, driven by
// tagged Events rather than dynamic dispatch on event-name strings.
package statemachine

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hvac-controller/internal/clock"
	"github.com/thatsimonsguy/hvac-controller/internal/evaluation"
	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

// EntryAction is emitted whenever a transition's entry action fires,
// to the hook registered with WithTransitionHook. The controller loop
// registers no hook; it drives the Actuator and the Cycling Monitor
// by comparing State() before and after each event it sends.
type EntryAction int

const (
	ActionNone EntryAction = iota
	ActionStartHeating
	ActionStartCooling
	ActionStopAll
	ActionStartDefrost
	ActionResumeHeating
	ActionApplyOverride
	ActionClearOverride
)

// Machine is the HVAC state machine. One instance per controller
// process; not safe for concurrent Send calls from multiple
// goroutines other than the controller loop's single event consumer,
// but guards its running flag with a mutex since Stop/Status may be
// called from the status HTTP handler concurrently.
type Machine struct {
	mu sync.Mutex

	state   model.HVACState
	running bool

	ctx    model.HVACContext
	engine *evaluation.Engine
	clk    clock.Clock

	defrostTimer    *model.DefrostTimer
	defrostDuration time.Duration

	lastTransition    time.Time
	lastValidationErr error

	// onTransition, if set, is invoked after every committed
	// transition with the action to perform and the resulting state.
	onTransition func(from, to model.HVACState, action EntryAction, ctx model.HVACContext)
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithTransitionHook registers a callback invoked synchronously after
// every committed transition.
func WithTransitionHook(fn func(from, to model.HVACState, action EntryAction, ctx model.HVACContext)) Option {
	return func(m *Machine) { m.onTransition = fn }
}

// New builds a Machine in the idle state, not yet started.
func New(engine *evaluation.Engine, clk clock.Clock, defrostDuration time.Duration, initial model.HVACContext, opts ...Option) *Machine {
	m := &Machine{
		state:           model.StateIdle,
		ctx:             initial,
		engine:          engine,
		clk:             clk,
		defrostDuration: defrostDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start marks the machine running. Fails if already running.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return &herrors.StateError{Reason: herrors.ReasonAlreadyRunning}
	}
	m.running = true
	m.lastTransition = m.clk.Now()
	return nil
}

// Stop marks the machine not running. Idempotent: stopping a stopped
// machine is a no-op, matching the controller loop's idempotent
// shutdown requirement.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

// State returns the current state.
func (m *Machine) State() model.HVACState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether the machine has been started.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Context returns a copy of the current evaluation context.
func (m *Machine) Context() model.HVACContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// Send delivers an event to the machine. Fails with StateError if the
// machine is not running.
func (m *Machine) Send(evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return &herrors.StateError{Reason: herrors.ReasonNotRunning}
	}

	switch evt.Kind {
	case EventUpdateTemperatures:
		m.handleUpdateTemperatures(evt)
		return nil
	case EventUpdateConditions:
		m.handleUpdateConditions(evt)
		return nil
	case EventAutoEvaluate:
		m.handleAutoEvaluate()
		return nil
	case EventHeat:
		m.handleHeat()
		return nil
	case EventCool:
		m.handleCool()
		return nil
	case EventOff:
		m.handleOff()
		return nil
	case EventDefrostNeeded:
		m.handleDefrostNeeded()
		return nil
	case EventDefrostComplete:
		m.handleDefrostComplete()
		return nil
	case EventManualOverride:
		m.handleManualOverride(evt)
		return nil
	}
	return nil
}

// handleUpdateTemperatures implements the idle/evaluating "merge
// context" row, but temperature merges apply from any state: the
// context is shared across states, only transitions are state-scoped.
func (m *Machine) handleUpdateTemperatures(evt Event) {
	if evt.Indoor != nil {
		if !finite(*evt.Indoor) {
			err := &herrors.ValidationError{Field: "indoor", Value: *evt.Indoor}
			m.lastValidationErr = err
			log.Debug().Err(err).Msg("dropping non-finite temperature update")
			return
		}
	}
	if evt.Outdoor != nil {
		if !finite(*evt.Outdoor) {
			err := &herrors.ValidationError{Field: "outdoor", Value: *evt.Outdoor}
			m.lastValidationErr = err
			log.Debug().Err(err).Msg("dropping non-finite temperature update")
			return
		}
	}
	if evt.Indoor != nil {
		m.ctx.IndoorTemp = evt.Indoor
	}
	if evt.Outdoor != nil {
		m.ctx.OutdoorTemp = evt.Outdoor
	}
}

// LastValidationError returns the most recently dropped non-finite
// sensor update, if any, for tests and diagnostics to assert on.
func (m *Machine) LastValidationError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastValidationErr
}

func (m *Machine) handleUpdateConditions(evt Event) {
	if evt.Hour != nil {
		m.ctx.CurrentHour = *evt.Hour
	}
	if evt.IsWeekday != nil {
		m.ctx.IsWeekday = *evt.IsWeekday
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// handleAutoEvaluate implements the evaluating-state transitions from
// every from-state that accepts AUTO_EVALUATE (idle, off, heating,
// cooling, manualOverride all route through it).
func (m *Machine) handleAutoEvaluate() {
	from := m.state

	if from == model.StateManualOverride {
		m.ctx.Override = nil
		m.commit(from, model.StateEvaluating, ActionClearOverride)
		from = model.StateEvaluating
	} else {
		m.commit(from, model.StateEvaluating, ActionNone)
	}

	result, ok := m.evaluate()
	if !ok {
		// missing temperature data: stay put rather than guess.
		m.commit(model.StateEvaluating, from, ActionNone)
		return
	}

	switch {
	case m.shouldAutoHeat(result):
		m.commit(model.StateEvaluating, model.StateHeating, ActionStartHeating)
	case m.shouldAutoCool(result):
		m.commit(model.StateEvaluating, model.StateCooling, ActionStartCooling)
	default:
		m.commit(model.StateEvaluating, model.StateOff, ActionStopAll)
	}
}

func (m *Machine) handleHeat() {
	if m.state != model.StateIdle && m.state != model.StateOff && m.state != model.StateCooling {
		return
	}
	result, ok := m.evaluate()
	if !ok || !m.canHeat(result) {
		return
	}
	m.commit(m.state, model.StateHeating, ActionStartHeating)
}

func (m *Machine) handleCool() {
	if m.state != model.StateIdle && m.state != model.StateOff && m.state != model.StateHeating {
		return
	}
	result, ok := m.evaluate()
	if !ok || !m.canCool(result) {
		return
	}
	m.commit(m.state, model.StateCooling, ActionStartCooling)
}

func (m *Machine) handleOff() {
	switch m.state {
	case model.StateHeating, model.StateCooling:
		m.commit(m.state, model.StateIdle, ActionStopAll)
	case model.StateDefrosting:
		m.defrostTimer = nil
		m.commit(m.state, model.StateIdle, ActionStopAll)
	}
}

func (m *Machine) handleDefrostNeeded() {
	if m.state != model.StateHeating {
		return
	}
	result, ok := m.evaluate()
	if !ok || !m.canDefrost(result) {
		return
	}
	m.defrostTimer = &model.DefrostTimer{StartedAt: m.clk.Now(), DurationSeconds: int(m.defrostDuration.Seconds())}
	now := m.clk.Now()
	m.ctx.LastDefrost = &now
	m.commit(m.state, model.StateDefrosting, ActionStartDefrost)
}

func (m *Machine) handleDefrostComplete() {
	if m.state != model.StateDefrosting {
		return
	}
	m.defrostTimer = nil
	m.commit(m.state, model.StateHeating, ActionResumeHeating)
}

// PollDefrostTimer checks whether an active defrost has run its
// configured duration and, if so, resumes heating. The controller
// loop calls this on each periodic tick rather than the machine
// owning its own goroutine timer, keeping all state transitions on
// the single consumer.
func (m *Machine) PollDefrostTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != model.StateDefrosting || m.defrostTimer == nil {
		return
	}
	elapsed := m.clk.Now().Sub(m.defrostTimer.StartedAt)
	if elapsed >= time.Duration(m.defrostTimer.DurationSeconds)*time.Second {
		m.defrostTimer = nil
		m.commit(m.state, model.StateHeating, ActionResumeHeating)
	}
}

func (m *Machine) handleManualOverride(evt Event) {
	from := m.state
	if from == model.StateDefrosting {
		m.defrostTimer = nil
	}
	m.ctx.Override = &model.ManualOverride{
		Mode:       evt.OverrideMode,
		TargetTemp: evt.OverrideTarget,
		ExpiresAt:  evt.OverrideExpiry,
	}
	m.commit(from, model.StateManualOverride, ActionApplyOverride)
}

// evaluate runs the Evaluation Engine against the current context. ok
// is false when either temperature is missing, per the canHeat/canCool
// "both temperatures present" guard.
func (m *Machine) evaluate() (model.EvaluationResult, bool) {
	if m.ctx.IndoorTemp == nil || m.ctx.OutdoorTemp == nil {
		return model.EvaluationResult{}, false
	}
	data := model.StateChangeData{
		CurrentTemp: *m.ctx.IndoorTemp,
		WeatherTemp: *m.ctx.OutdoorTemp,
		Hour:        m.ctx.CurrentHour,
		IsWeekday:   m.ctx.IsWeekday,
		LastDefrost: m.ctx.LastDefrost,
		Now:         m.clk.Now(),
	}
	return m.engine.Evaluate(data), true
}

func (m *Machine) canHeat(result model.EvaluationResult) bool {
	if m.ctx.SystemMode == model.ModeCoolOnly || m.ctx.SystemMode == model.ModeOff {
		return false
	}
	return result.ShouldHeat
}

func (m *Machine) canCool(result model.EvaluationResult) bool {
	if m.ctx.SystemMode == model.ModeHeatOnly || m.ctx.SystemMode == model.ModeOff {
		return false
	}
	return result.ShouldCool
}

func (m *Machine) shouldAutoHeat(result model.EvaluationResult) bool {
	return m.ctx.SystemMode == model.ModeAuto && m.canHeat(result)
}

func (m *Machine) shouldAutoCool(result model.EvaluationResult) bool {
	return m.ctx.SystemMode == model.ModeAuto && m.canCool(result)
}

func (m *Machine) canDefrost(result model.EvaluationResult) bool {
	if m.ctx.IndoorTemp == nil || m.ctx.OutdoorTemp == nil {
		return false
	}
	return result.NeedsDefrost
}

func (m *Machine) commit(from, to model.HVACState, action EntryAction) {
	m.state = to
	m.lastTransition = m.clk.Now()
	log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state transition")
	if m.onTransition != nil {
		m.onTransition(from, to, action, m.ctx)
	}
}
