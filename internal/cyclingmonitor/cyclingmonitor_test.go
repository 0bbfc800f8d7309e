package cyclingmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

func rec(from, to model.HVACState, at time.Time) model.StateChangeRecord {
	return model.StateChangeRecord{FromState: from, ToState: to, Timestamp: at}
}

// Given (t0, X->HEAT), (t0+4min, HEAT->OFF), (t0+8min, OFF->HEAT), the
// off->re-heat gap is 4 minutes (under 5), so the pattern must be
// classified CRITICAL even though the full three-record span is 8
// minutes (which alone would read as merely WARNING).
func TestRapidCyclingDetectedWithoutPanicking(t *testing.T) {
	m := New(false)
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	m.Record(rec(model.StateIdle, model.StateHeating, t0))
	m.Record(rec(model.StateHeating, model.StateOff, t0.Add(4*time.Minute)))
	severity := m.Record(rec(model.StateOff, model.StateHeating, t0.Add(8*time.Minute)))

	require.NotNil(t, severity)
	assert.Equal(t, SeverityCritical, *severity)
	assert.Equal(t, 3, m.Len())
}

func TestRapidCycling_SlowOffDurationIsWarningNotCritical(t *testing.T) {
	m := New(false)
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	m.Record(rec(model.StateIdle, model.StateHeating, t0))
	m.Record(rec(model.StateHeating, model.StateOff, t0.Add(time.Minute)))
	severity := m.Record(rec(model.StateOff, model.StateHeating, t0.Add(8*time.Minute)))

	require.NotNil(t, severity)
	assert.Equal(t, SeverityWarning, *severity)
}

func TestNoRapidCycling_SlowTransitions(t *testing.T) {
	m := New(false)
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	m.Record(rec(model.StateIdle, model.StateHeating, t0))
	m.Record(rec(model.StateHeating, model.StateOff, t0.Add(20*time.Minute)))
	severity := m.Record(rec(model.StateOff, model.StateHeating, t0.Add(40*time.Minute)))

	assert.Nil(t, severity)
	assert.Equal(t, 3, m.Len())
}

func TestRingBuffer_BoundedCapacity(t *testing.T) {
	m := New(false)
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	for i := 0; i < Capacity+20; i++ {
		m.Record(rec(model.StateIdle, model.StateHeating, t0.Add(time.Duration(i)*time.Minute)))
	}
	assert.Equal(t, Capacity, m.Len(), "ring buffer must stay at fixed capacity")
}

func TestHealth_InsufficientData(t *testing.T) {
	m := New(false)
	now := time.Now()
	assert.Equal(t, HealthInsufficientData, m.GetHysteresisHealth(now))

	m.Record(rec(model.StateIdle, model.StateHeating, now.Add(-time.Hour)))
	assert.Equal(t, HealthInsufficientData, m.GetHysteresisHealth(now))
}

func TestHealth_Critical(t *testing.T) {
	m := New(false)
	now := time.Now()
	m.Record(rec(model.StateIdle, model.StateHeating, now.Add(-20*time.Minute)))
	m.Record(rec(model.StateOff, model.StateHeating, now.Add(-10*time.Minute)))
	m.Record(rec(model.StateOff, model.StateHeating, now))
	assert.Equal(t, HealthCritical, m.GetHysteresisHealth(now))
}

func TestHealth_Healthy(t *testing.T) {
	m := New(false)
	now := time.Now()
	m.Record(rec(model.StateIdle, model.StateHeating, now.Add(-2*time.Hour)))
	m.Record(rec(model.StateOff, model.StateHeating, now.Add(-1*time.Hour)))
	assert.Equal(t, HealthHealthy, m.GetHysteresisHealth(now))
}

func TestHealth_Info_ExcellentStability(t *testing.T) {
	m := New(false)
	now := time.Now()
	m.Record(rec(model.StateIdle, model.StateHeating, now.Add(-5*time.Hour)))
	m.Record(rec(model.StateOff, model.StateHeating, now.Add(-2*time.Hour)))
	assert.Equal(t, HealthInfo, m.GetHysteresisHealth(now))
}
