package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const validYAML = `
appOptions:
  logLevel: info
  useAi: false
hassOptions:
  wsUrl: ws://localhost:8123/api/websocket
  restUrl: http://localhost:8123/api
  token: secret
  maxRetries: 5
  retryDelayMs: 1000
hvacOptions:
  tempSensor: sensor.living_room_temperature
  outdoorSensor: sensor.outdoor_temperature
  systemMode: auto
  hvacEntities:
    - entityId: climate.living_room
      enabled: true
  heating:
    temperature: 21
    presetMode: comfort
    temperatureThresholds:
      indoorMin: 19
      indoorMax: 22
      outdoorMin: -10
      outdoorMax: 15
  cooling:
    temperature: 24
    presetMode: eco
    temperatureThresholds:
      indoorMin: 23
      indoorMax: 26
      outdoorMin: 10
      outdoorMax: 45
  evaluationCacheMs: 100
`

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sensor.living_room_temperature", cfg.HVAC.TempSensor)
	assert.Equal(t, 100, cfg.HVAC.EvaluationCacheMs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	var cfgErr *herrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_IndoorMinMustBeLessThanMax(t *testing.T) {
	bad := `
hvacOptions:
  tempSensor: sensor.living_room_temperature
  outdoorSensor: sensor.outdoor_temperature
  systemMode: auto
  heating:
    temperatureThresholds: { indoorMin: 22, indoorMax: 19, outdoorMin: -10, outdoorMax: 15 }
  cooling:
    temperatureThresholds: { indoorMin: 23, indoorMax: 26, outdoorMin: 10, outdoorMax: 45 }
`
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	bad := `
hvacOptions:
  tempSensor: sensor.living_room_temperature
  outdoorSensor: sensor.outdoor_temperature
  systemMode: auto
  heating:
    temperatureThresholds: { indoorMin: 19, indoorMax: 22, outdoorMin: -100, outdoorMax: 15 }
  cooling:
    temperatureThresholds: { indoorMin: 23, indoorMax: 26, outdoorMin: 10, outdoorMax: 45 }
`
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_EntityIDRequiresExactlyOneDot(t *testing.T) {
	bad := `
hvacOptions:
  tempSensor: sensor_living_room_temperature
  outdoorSensor: sensor.outdoor_temperature
  systemMode: auto
  heating:
    temperatureThresholds: { indoorMin: 19, indoorMax: 22, outdoorMin: -10, outdoorMax: 15 }
  cooling:
    temperatureThresholds: { indoorMin: 23, indoorMax: 26, outdoorMin: 10, outdoorMax: 45 }
`
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_EvaluationCacheMsOutOfRange(t *testing.T) {
	bad := `
hvacOptions:
  tempSensor: sensor.living_room_temperature
  outdoorSensor: sensor.outdoor_temperature
  systemMode: auto
  evaluationCacheMs: 9000
  heating:
    temperatureThresholds: { indoorMin: 19, indoorMax: 22, outdoorMin: -10, outdoorMax: 15 }
  cooling:
    temperatureThresholds: { indoorMin: 23, indoorMax: 26, outdoorMin: 10, outdoorMax: 45 }
`
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_InvalidSystemMode(t *testing.T) {
	bad := `
hvacOptions:
  tempSensor: sensor.living_room_temperature
  outdoorSensor: sensor.outdoor_temperature
  systemMode: turbo
  heating:
    temperatureThresholds: { indoorMin: 19, indoorMax: 22, outdoorMin: -10, outdoorMax: 15 }
  cooling:
    temperatureThresholds: { indoorMin: 23, indoorMax: 26, outdoorMin: 10, outdoorMax: 45 }
`
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestToModel_ProjectsUnitsAndThresholds(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	heating, cooling, activeHours, units := cfg.ToModel()
	assert.Equal(t, 19.0, heating.Thresholds.IndoorMin)
	assert.Equal(t, 26.0, cooling.Thresholds.IndoorMax)
	assert.Nil(t, activeHours)
	require.Len(t, units, 1)
	assert.Equal(t, "climate.living_room", units[0].EntityID)
}
