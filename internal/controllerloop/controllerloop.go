// Package controllerloop owns the daemon's lifecycle: startup
// sequencing, event subscription and debounce, the periodic tick,
// manual overrides, and shutdown.
package controllerloop

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hvac-controller/internal/actuator"
	"github.com/thatsimonsguy/hvac-controller/internal/clock"
	"github.com/thatsimonsguy/hvac-controller/internal/cyclingmonitor"
	"github.com/thatsimonsguy/hvac-controller/internal/evalcache"
	"github.com/thatsimonsguy/hvac-controller/internal/gateway"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
	"github.com/thatsimonsguy/hvac-controller/internal/statemachine"
)

// Loop wires the Evaluation Engine (via the state machine), Platform
// Gateway, Actuator, Evaluation Cache, and Cycling Monitor into one
// running controller.
type Loop struct {
	gw        gateway.PlatformGateway
	machine   *statemachine.Machine
	actuator  *actuator.Actuator
	cache     *evalcache.Cache
	monitor   *cyclingmonitor.Monitor
	clk       clock.Clock

	tempSensor    string
	outdoorSensor string
	tickInterval  time.Duration

	mu           sync.Mutex
	unsubscribe  func()
	tickCancel   context.CancelFunc
	overrideStop context.CancelFunc
	lastError    error
}

// New builds a Loop. Call Start to run the startup sequence.
func New(
	gw gateway.PlatformGateway,
	machine *statemachine.Machine,
	act *actuator.Actuator,
	cache *evalcache.Cache,
	monitor *cyclingmonitor.Monitor,
	clk clock.Clock,
	tempSensor, outdoorSensor string,
	tickInterval time.Duration,
) *Loop {
	l := &Loop{
		gw: gw, machine: machine, actuator: act, cache: cache, monitor: monitor, clk: clk,
		tempSensor: tempSensor, outdoorSensor: outdoorSensor, tickInterval: tickInterval,
	}
	machine.Stop() // ensure a clean slate; New doesn't start the machine
	return l
}

// Start runs the documented startup sequence: connect gateway,
// subscribe to state-change events, seed initial temperatures, start
// the state machine, dispatch an initial AUTO_EVALUATE, then begin
// the periodic tick.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.gw.Connect(ctx); err != nil {
		return err
	}

	unsubscribe, err := l.gw.SubscribeStateChanged(l.handleStateChanged)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.unsubscribe = unsubscribe
	l.mu.Unlock()

	l.seedInitialTemperatures(ctx)

	if err := l.machine.Start(); err != nil {
		return err
	}

	l.autoEvaluate()

	tickCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.tickCancel = cancel
	l.mu.Unlock()
	go l.runTick(tickCtx)

	return nil
}

func (l *Loop) seedInitialTemperatures(ctx context.Context) {
	indoor, ok := l.readSensor(ctx, l.tempSensor)
	var indoorPtr *float64
	if ok {
		indoorPtr = &indoor
	}
	outdoor, ok := l.readSensor(ctx, l.outdoorSensor)
	var outdoorPtr *float64
	if ok {
		outdoorPtr = &outdoor
	}
	_ = l.machine.Send(statemachine.Event{Kind: statemachine.EventUpdateTemperatures, Indoor: indoorPtr, Outdoor: outdoorPtr})
}

func (l *Loop) readSensor(ctx context.Context, entityID string) (float64, bool) {
	state, err := l.gw.GetState(ctx, entityID)
	if err != nil {
		log.Warn().Err(err).Str("entity", entityID).Msg("initial sensor read failed")
		l.recordError(err)
		return 0, false
	}
	v, ok := parseFloat(state.State)
	if !ok {
		log.Warn().Str("entity", entityID).Str("state", state.State).Msg("sensor state not numeric")
		return 0, false
	}
	return v, true
}

// handleStateChanged is the subscription handler: on a recognized
// sensor, parse and emit UPDATE_TEMPERATURES, then AUTO_EVALUATE
// unless the evaluation cache has an unexpired hit for the resulting
// fingerprint.
func (l *Loop) handleStateChanged(evt gateway.StateChangedEvent) {
	v, ok := parseFloat(evt.NewState)
	if !ok {
		return
	}

	var update statemachine.Event
	update.Kind = statemachine.EventUpdateTemperatures
	switch evt.EntityID {
	case l.tempSensor:
		update.Indoor = &v
	case l.outdoorSensor:
		update.Outdoor = &v
	default:
		return
	}

	if err := l.machine.Send(update); err != nil {
		l.recordError(err)
		return
	}

	l.autoEvaluate()
}

// autoEvaluate dispatches AUTO_EVALUATE unless the quantized input
// fingerprint is already cached and unexpired, then drives the
// Actuator and Cycling Monitor from the resulting transition.
func (l *Loop) autoEvaluate() {
	ctx := l.machine.Context()
	now := l.clk.Now()

	if ctx.IndoorTemp != nil && ctx.OutdoorTemp != nil {
		fp := evalcache.Fingerprint(*ctx.IndoorTemp, *ctx.OutdoorTemp, ctx.CurrentHour, ctx.IsWeekday, ctx.SystemMode, ctx.LastDefrost, now)
		if l.cache.Hit(fp, now) {
			return
		}
		l.cache.Record(fp, now)
	}

	before := l.machine.State()
	if err := l.machine.Send(statemachine.Event{Kind: statemachine.EventAutoEvaluate}); err != nil {
		l.recordError(err)
		return
	}
	l.applyTransition(before, l.machine.State())
}

func (l *Loop) applyTransition(from, to model.HVACState) {
	background := context.Background()
	switch to {
	case model.StateHeating:
		l.actuator.EnterHeating(background)
	case model.StateCooling:
		l.actuator.EnterCooling(background)
	case model.StateIdle, model.StateOff, model.StateDefrosting:
		l.actuator.StopAll(background)
	}

	if from != to {
		l.monitor.Record(model.StateChangeRecord{
			Timestamp: l.clk.Now(),
			FromState: from,
			ToState:   to,
		})
	}
}

// Tick refreshes clock-derived context fields, drops expired
// evaluation-cache entries, and emits AUTO_EVALUATE. Exported so tests
// can drive a tick deterministically without waiting on the ticker.
func (l *Loop) Tick() {
	l.cache.Evict(l.clk.Now())
	hour := l.clk.Hour()
	weekday := l.clk.IsWeekday()
	_ = l.machine.Send(statemachine.Event{Kind: statemachine.EventUpdateConditions, Hour: &hour, IsWeekday: &weekday})
	l.machine.PollDefrostTimer()
	l.autoEvaluate()
}

func (l *Loop) runTick(ctx context.Context) {
	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// ManualOverride enqueues a MANUAL_OVERRIDE event. The override
// persists until a following AUTO_EVALUATE or its optional expiry.
func (l *Loop) ManualOverride(mode model.SystemMode, targetTemp *float64, expiresAt *time.Time) error {
	l.mu.Lock()
	if l.overrideStop != nil {
		l.overrideStop()
		l.overrideStop = nil
	}
	l.mu.Unlock()

	before := l.machine.State()
	if err := l.machine.Send(statemachine.Event{
		Kind:           statemachine.EventManualOverride,
		OverrideMode:   mode,
		OverrideTarget: targetTemp,
		OverrideExpiry: expiresAt,
	}); err != nil {
		return err
	}
	l.applyTransition(before, l.machine.State())

	if expiresAt != nil {
		ctx, cancel := context.WithCancel(context.Background())
		l.mu.Lock()
		l.overrideStop = cancel
		l.mu.Unlock()
		go l.scheduleOverrideExpiry(ctx, *expiresAt)
	}
	return nil
}

func (l *Loop) scheduleOverrideExpiry(ctx context.Context, expiresAt time.Time) {
	wait := expiresAt.Sub(l.clk.Now())
	if wait < 0 {
		wait = 0
	}
	select {
	case <-ctx.Done():
		return
	case <-l.clk.After(wait):
		l.autoEvaluate()
	}
}

func (l *Loop) recordError(err error) {
	l.mu.Lock()
	l.lastError = err
	l.mu.Unlock()
}

// LastError returns the most recently recorded non-fatal error, if any.
func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastError
}

// Shutdown stops the periodic tick, unsubscribes, stops the state
// machine, and disconnects the gateway. Idempotent; every release
// runs even if an earlier one fails, and all failures are returned
// together.
func (l *Loop) Shutdown() []error {
	var errs []error

	l.mu.Lock()
	tickCancel := l.tickCancel
	overrideStop := l.overrideStop
	unsubscribe := l.unsubscribe
	l.tickCancel = nil
	l.overrideStop = nil
	l.unsubscribe = nil
	l.mu.Unlock()

	if tickCancel != nil {
		tickCancel()
	}
	if overrideStop != nil {
		overrideStop()
	}
	if unsubscribe != nil {
		unsubscribe()
	}

	l.machine.Stop()

	if err := l.gw.Disconnect(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// CyclingHealth exposes the cycling monitor's current classification
// for the status snapshot.
func (l *Loop) CyclingHealth() cyclingmonitor.Health {
	return l.monitor.GetHysteresisHealth(l.clk.Now())
}
