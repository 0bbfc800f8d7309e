// Package cyclingmonitor tracks state-change history and flags rapid
// cycling and overall hysteresis health. It never changes
// state itself; it is consulted on demand and emits alerts.
package cyclingmonitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hvac-controller/internal/datadog"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
	"github.com/thatsimonsguy/hvac-controller/internal/notifications"
)

// Capacity is the fixed ring-buffer size.
const Capacity = 100

// Severity classifies a rapid-cycling alert.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Health is the hysteresis health classification.
type Health string

const (
	HealthInsufficientData Health = "INSUFFICIENT_DATA"
	HealthCritical         Health = "CRITICAL"
	HealthWarning          Health = "WARNING"
	HealthInfo             Health = "INFO"
	HealthHealthy          Health = "HEALTHY"
)

// Monitor holds a fixed-capacity ring buffer of state-change records.
type Monitor struct {
	mu      sync.Mutex
	records []model.StateChangeRecord
	notify  bool
}

// New builds an empty Monitor. notify controls whether rapid-cycling
// alerts are pushed through internal/notifications (disabled in
// dry-run/validate paths).
func New(notify bool) *Monitor {
	return &Monitor{
		records: make([]model.StateChangeRecord, 0, Capacity),
		notify:  notify,
	}
}

// Record appends a state-change record, evicting the oldest entry once
// the ring buffer is full, then checks for rapid cycling. It returns
// the alert severity if this record completed a rapid-cycling pattern,
// or nil otherwise — exposed mainly so tests can assert on it directly.
func (m *Monitor) Record(rec model.StateChangeRecord) *Severity {
	m.mu.Lock()
	if len(m.records) >= Capacity {
		m.records = m.records[1:]
	}
	m.records = append(m.records, rec)
	records := append([]model.StateChangeRecord(nil), m.records...)
	m.mu.Unlock()

	datadog.Count("hvac.state_transition", 1, "from:"+string(rec.FromState), "to:"+string(rec.ToState))

	return m.checkRapidCycling(records)
}

// checkRapidCycling examines the trailing three records for the
// pattern X -> HEAT -> OFF -> HEAT within 15 minutes. Severity is
// driven by the OFF->re-HEAT interval, not the full three-record span:
// a slow initial HEAT followed by a fast OFF/re-HEAT flap is just as
// critical as a fast one throughout.
func (m *Monitor) checkRapidCycling(records []model.StateChangeRecord) *Severity {
	if len(records) < 3 {
		return nil
	}
	last3 := records[len(records)-3:]

	if last3[0].ToState != model.StateHeating {
		return nil
	}
	if last3[1].FromState != model.StateHeating || last3[1].ToState != model.StateOff {
		return nil
	}
	if last3[2].FromState != model.StateOff || last3[2].ToState != model.StateHeating {
		return nil
	}

	span := last3[2].Timestamp.Sub(last3[0].Timestamp)
	if span >= 15*time.Minute {
		return nil
	}

	offDuration := last3[2].Timestamp.Sub(last3[1].Timestamp)
	severity := SeverityWarning
	if offDuration < 5*time.Minute {
		severity = SeverityCritical
	}

	log.Warn().Str("severity", string(severity)).Dur("off_duration", offDuration).Msg("rapid cycling detected")
	datadog.Count("hvac.rapid_cycling", 1, "severity:"+string(severity))

	if m.notify {
		err := notifications.Send("HVAC Rapid Cycling", string(severity)+": heat/off/heat cycle with "+offDuration.String()+" off")
		if err != nil {
			log.Error().Err(err).Msg("failed to send rapid cycling notification")
		}
	}

	return &severity
}

// GetHysteresisHealth classifies the system's recent stability by
// examining HEAT-entry records in the last 24 hours.
func (m *Monitor) GetHysteresisHealth(now time.Time) Health {
	m.mu.Lock()
	records := append([]model.StateChangeRecord(nil), m.records...)
	m.mu.Unlock()

	cutoff := now.Add(-24 * time.Hour)
	var heatEntries []time.Time
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		if r.ToState == model.StateHeating {
			heatEntries = append(heatEntries, r.Timestamp)
		}
	}

	if len(heatEntries) < 2 {
		return HealthInsufficientData
	}

	var total time.Duration
	for i := 1; i < len(heatEntries); i++ {
		total += heatEntries[i].Sub(heatEntries[i-1])
	}
	avg := total / time.Duration(len(heatEntries)-1)

	switch {
	case avg < 15*time.Minute:
		return HealthCritical
	case avg < 30*time.Minute:
		return HealthWarning
	case avg > 120*time.Minute:
		return HealthInfo
	default:
		return HealthHealthy
	}
}

// Len reports the current ring-buffer size, for tests of the
// bounded-memory property.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
