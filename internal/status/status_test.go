package status

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hvac-controller/internal/actuator"
	"github.com/thatsimonsguy/hvac-controller/internal/clock"
	"github.com/thatsimonsguy/hvac-controller/internal/controllerloop"
	"github.com/thatsimonsguy/hvac-controller/internal/cyclingmonitor"
	"github.com/thatsimonsguy/hvac-controller/internal/evalcache"
	"github.com/thatsimonsguy/hvac-controller/internal/evaluation"
	"github.com/thatsimonsguy/hvac-controller/internal/gateway"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
	"github.com/thatsimonsguy/hvac-controller/internal/statemachine"
)

func buildServer(t *testing.T) *Server {
	t.Helper()
	heating := model.HeatingParams{Thresholds: model.Thresholds{IndoorMin: 19, IndoorMax: 22, OutdoorMin: -10, OutdoorMax: 15}}
	cooling := model.CoolingParams{Thresholds: model.Thresholds{IndoorMin: 23, IndoorMax: 26, OutdoorMin: 10, OutdoorMax: 45}}
	engine := evaluation.New(heating, cooling, nil)

	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	ctx := model.HVACContext{SystemMode: model.ModeAuto, CurrentHour: clk.Hour(), IsWeekday: clk.IsWeekday()}
	machine := statemachine.New(engine, clk, 0, ctx)

	gw := gateway.NewDryRun(map[string]gateway.EntityState{
		"sensor.indoor_temperature":  {State: "18.0"},
		"sensor.outdoor_temperature": {State: "5.0"},
	})
	units := []model.HVACUnit{{EntityID: "climate.living_room", Enabled: true}}
	act := actuator.New(units, gw, heating, cooling)
	cache := evalcache.New(0)
	monitor := cyclingmonitor.New(false)

	loop := controllerloop.New(gw, machine, act, cache, monitor, clk, "sensor.indoor_temperature", "sensor.outdoor_temperature", time.Minute)
	require.NoError(t, loop.Start(context.Background()))

	return NewServer(machine, gw, loop)
}

func TestSnapshot_ReflectsRunningState(t *testing.T) {
	srv := buildServer(t)
	snap := srv.Snapshot()

	assert.True(t, snap.Running)
	assert.True(t, snap.Connected)
	assert.Equal(t, model.StateHeating, snap.CurrentState)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, cyclingmonitor.HealthInsufficientData, snap.CyclingHealth)
}

func TestHandleStatus_ServesJSON(t *testing.T) {
	srv := buildServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, model.StateHeating, snap.CurrentState)
}

func TestHandleStatus_RejectsNonGET(t *testing.T) {
	srv := buildServer(t)

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleOverride_AppliesMode(t *testing.T) {
	srv := buildServer(t)

	body, _ := json.Marshal(overrideRequest{Mode: "off"})
	req := httptest.NewRequest(http.MethodPost, "/override", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleOverride(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, model.StateManualOverride, snap.CurrentState)
}

func TestHandleOverride_RejectsInvalidMode(t *testing.T) {
	srv := buildServer(t)

	body, _ := json.Marshal(overrideRequest{Mode: "not_a_mode"})
	req := httptest.NewRequest(http.MethodPost, "/override", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleOverride(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
