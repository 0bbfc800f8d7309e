// Package config loads and validates the controller's YAML
// configuration, binding the environment-variable overrides named in
// the external interfaces contract.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

// AppOptions configures ambient behavior: logging, metrics/alerting
// transports, and the pluggable (and out-of-scope) AI decision
// subsystem.
type AppOptions struct {
	LogLevel      string  `mapstructure:"logLevel" yaml:"logLevel"`
	LogFile       string  `mapstructure:"logFile" yaml:"logFile"`
	UseAI         bool    `mapstructure:"useAi" yaml:"useAi"`
	AIModel       string  `mapstructure:"aiModel" yaml:"aiModel"`
	AITemperature float64 `mapstructure:"aiTemperature" yaml:"aiTemperature"`
	OpenAIAPIKey  string  `mapstructure:"openaiApiKey" yaml:"openaiApiKey"`

	NtfyTopic      string `mapstructure:"ntfyTopic" yaml:"ntfyTopic"`
	DatadogAddr    string `mapstructure:"datadogAddr" yaml:"datadogAddr"`
	MetricsEnabled bool   `mapstructure:"metricsEnabled" yaml:"metricsEnabled"`
	StatusPort     int    `mapstructure:"statusPort" yaml:"statusPort"`
}

// HassOptions configures the Home Assistant connection.
type HassOptions struct {
	WSURL              string `mapstructure:"wsUrl" yaml:"wsUrl"`
	RESTURL            string `mapstructure:"restUrl" yaml:"restUrl"`
	Token              string `mapstructure:"token" yaml:"token"`
	MaxRetries         int    `mapstructure:"maxRetries" yaml:"maxRetries"`
	RetryDelayMs       int    `mapstructure:"retryDelayMs" yaml:"retryDelayMs"`
	StateCheckInterval int    `mapstructure:"stateCheckInterval" yaml:"stateCheckInterval"`
	TimeoutMs          int    `mapstructure:"timeoutMs" yaml:"timeoutMs"`
}

// HVACEntityConfig describes one controllable unit in the config file.
type HVACEntityConfig struct {
	EntityID string `mapstructure:"entityId" yaml:"entityId"`
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Defrost  bool   `mapstructure:"defrost" yaml:"defrost"`
}

// ThresholdsConfig mirrors model.Thresholds in config-file shape.
type ThresholdsConfig struct {
	IndoorMin  float64 `mapstructure:"indoorMin" yaml:"indoorMin"`
	IndoorMax  float64 `mapstructure:"indoorMax" yaml:"indoorMax"`
	OutdoorMin float64 `mapstructure:"outdoorMin" yaml:"outdoorMin"`
	OutdoorMax float64 `mapstructure:"outdoorMax" yaml:"outdoorMax"`
}

// DefrostConfig mirrors model.Defrost in config-file shape.
type DefrostConfig struct {
	TemperatureThreshold float64 `mapstructure:"temperatureThreshold" yaml:"temperatureThreshold"`
	PeriodSeconds        int     `mapstructure:"periodSeconds" yaml:"periodSeconds"`
	DurationSeconds      int     `mapstructure:"durationSeconds" yaml:"durationSeconds"`
}

// HeatingConfig mirrors model.HeatingParams in config-file shape.
type HeatingConfig struct {
	Temperature             float64           `mapstructure:"temperature" yaml:"temperature"`
	PresetMode              string            `mapstructure:"presetMode" yaml:"presetMode"`
	TemperatureThresholds   ThresholdsConfig  `mapstructure:"temperatureThresholds" yaml:"temperatureThresholds"`
	Defrost                 *DefrostConfig    `mapstructure:"defrost" yaml:"defrost"`
}

// CoolingConfig mirrors model.CoolingParams in config-file shape.
type CoolingConfig struct {
	Temperature           float64          `mapstructure:"temperature" yaml:"temperature"`
	PresetMode            string           `mapstructure:"presetMode" yaml:"presetMode"`
	TemperatureThresholds ThresholdsConfig `mapstructure:"temperatureThresholds" yaml:"temperatureThresholds"`
}

// ActiveHoursConfig mirrors model.ActiveHours in config-file shape.
type ActiveHoursConfig struct {
	Start        int `mapstructure:"start" yaml:"start"`
	StartWeekday int `mapstructure:"startWeekday" yaml:"startWeekday"`
	End          int `mapstructure:"end" yaml:"end"`
}

// HVACOptions configures the evaluation/actuation domain.
type HVACOptions struct {
	TempSensor        string              `mapstructure:"tempSensor" yaml:"tempSensor"`
	OutdoorSensor     string              `mapstructure:"outdoorSensor" yaml:"outdoorSensor"`
	SystemMode        model.SystemMode    `mapstructure:"systemMode" yaml:"systemMode"`
	HVACEntities      []HVACEntityConfig  `mapstructure:"hvacEntities" yaml:"hvacEntities"`
	Heating           HeatingConfig       `mapstructure:"heating" yaml:"heating"`
	Cooling           CoolingConfig       `mapstructure:"cooling" yaml:"cooling"`
	ActiveHours       *ActiveHoursConfig  `mapstructure:"activeHours" yaml:"activeHours"`
	EvaluationCacheMs int                 `mapstructure:"evaluationCacheMs" yaml:"evaluationCacheMs"`
}

// Config is the fully-loaded, validated configuration.
type Config struct {
	App  AppOptions  `mapstructure:"appOptions" yaml:"appOptions"`
	Hass HassOptions `mapstructure:"hassOptions" yaml:"hassOptions"`
	HVAC HVACOptions `mapstructure:"hvacOptions" yaml:"hvacOptions"`
}

// Load reads the YAML config at path through viper, applies the
// documented environment-variable overrides, and validates the
// result. Any failure is a ConfigurationError.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("hvacOptions.evaluationCacheMs", 100)
	v.SetDefault("hassOptions.maxRetries", 5)
	v.SetDefault("hassOptions.retryDelayMs", 1000)
	v.SetDefault("hassOptions.stateCheckInterval", 30000)
	v.SetDefault("hassOptions.timeoutMs", 10000)
	v.SetDefault("appOptions.logLevel", "info")
	v.SetDefault("appOptions.datadogAddr", "127.0.0.1:8125")
	v.SetDefault("appOptions.statusPort", 8090)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, &herrors.ConfigurationError{Msg: fmt.Sprintf("reading config file %s: %v", path, err)}
	}

	bindEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &herrors.ConfigurationError{Msg: fmt.Sprintf("parsing config: %v", err)}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bindEnvOverrides wires the documented environment-variable
// overrides onto the corresponding viper keys.
func bindEnvOverrides(v *viper.Viper) {
	bindings := map[string]string{
		"hassOptions.wsUrl":       "HASS_WS_URL",
		"hassOptions.restUrl":     "HASS_REST_URL",
		"hassOptions.token":       "HASS_TOKEN",
		"hassOptions.maxRetries":  "HASS_MAX_RETRIES",
		"appOptions.logLevel":     "HAG_LOG_LEVEL",
		"appOptions.useAi":        "HAG_USE_AI",
		"appOptions.aiModel":      "HAG_AI_MODEL",
		"appOptions.openaiApiKey": "OPENAI_API_KEY",
		"hvacOptions.tempSensor":    "HAG_TEMP_SENSOR",
		"hvacOptions.outdoorSensor": "HAG_OUTDOOR_SENSOR",
		"hvacOptions.systemMode":    "HAG_SYSTEM_MODE",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// ConfigFileFromEnv resolves HAG_CONFIG_FILE over the CLI default.
// It governs which file Load reads, so it's applied before Load
// rather than inside it.
func ConfigFileFromEnv(fallback string) string {
	v := viper.New()
	v.SetDefault("path", fallback)
	_ = v.BindEnv("path", "HAG_CONFIG_FILE")
	return v.GetString("path")
}

func (c *Config) validate() error {
	if err := validateThresholds("hvacOptions.heating.temperatureThresholds", c.HVAC.Heating.TemperatureThresholds); err != nil {
		return err
	}
	if err := validateThresholds("hvacOptions.cooling.temperatureThresholds", c.HVAC.Cooling.TemperatureThresholds); err != nil {
		return err
	}

	if c.HVAC.Heating.TemperatureThresholds.IndoorMin >= c.HVAC.Heating.TemperatureThresholds.IndoorMax {
		return &herrors.ConfigurationError{Field: "hvacOptions.heating.temperatureThresholds", Msg: "indoorMin must be less than indoorMax"}
	}
	if c.HVAC.Heating.TemperatureThresholds.OutdoorMin >= c.HVAC.Heating.TemperatureThresholds.OutdoorMax {
		return &herrors.ConfigurationError{Field: "hvacOptions.heating.temperatureThresholds", Msg: "outdoorMin must be less than outdoorMax"}
	}
	if c.HVAC.Cooling.TemperatureThresholds.IndoorMin >= c.HVAC.Cooling.TemperatureThresholds.IndoorMax {
		return &herrors.ConfigurationError{Field: "hvacOptions.cooling.temperatureThresholds", Msg: "indoorMin must be less than indoorMax"}
	}
	if c.HVAC.Cooling.TemperatureThresholds.OutdoorMin >= c.HVAC.Cooling.TemperatureThresholds.OutdoorMax {
		return &herrors.ConfigurationError{Field: "hvacOptions.cooling.temperatureThresholds", Msg: "outdoorMin must be less than outdoorMax"}
	}

	switch c.HVAC.SystemMode {
	case model.ModeAuto, model.ModeHeatOnly, model.ModeCoolOnly, model.ModeOff:
	default:
		return &herrors.ConfigurationError{Field: "hvacOptions.systemMode", Msg: fmt.Sprintf("invalid system mode %q", c.HVAC.SystemMode)}
	}

	if strings.Count(c.HVAC.TempSensor, ".") != 1 {
		return &herrors.ConfigurationError{Field: "hvacOptions.tempSensor", Msg: "entity id must have exactly one dot"}
	}
	if strings.Count(c.HVAC.OutdoorSensor, ".") != 1 {
		return &herrors.ConfigurationError{Field: "hvacOptions.outdoorSensor", Msg: "entity id must have exactly one dot"}
	}
	for _, e := range c.HVAC.HVACEntities {
		if strings.Count(e.EntityID, ".") != 1 {
			return &herrors.ConfigurationError{Field: "hvacOptions.hvacEntities", Msg: fmt.Sprintf("entity id %q must have exactly one dot", e.EntityID)}
		}
	}

	if c.HVAC.EvaluationCacheMs < 0 || c.HVAC.EvaluationCacheMs > 5000 {
		return &herrors.ConfigurationError{Field: "hvacOptions.evaluationCacheMs", Msg: "must be between 0 and 5000"}
	}

	return nil
}

func validateThresholds(field string, t ThresholdsConfig) error {
	for _, v := range []float64{t.IndoorMin, t.IndoorMax, t.OutdoorMin, t.OutdoorMax} {
		if v < -50 || v > 60 {
			return &herrors.ConfigurationError{Field: field, Msg: fmt.Sprintf("temperature %v out of range [-50,60]", v)}
		}
	}
	return nil
}

// ToModel projects the loaded config into the domain types the
// evaluation engine and actuator consume.
func (c *Config) ToModel() (model.HeatingParams, model.CoolingParams, *model.ActiveHours, []model.HVACUnit) {
	heating := model.HeatingParams{
		Temperature: c.HVAC.Heating.Temperature,
		PresetMode:  c.HVAC.Heating.PresetMode,
		Thresholds: model.Thresholds{
			IndoorMin:  c.HVAC.Heating.TemperatureThresholds.IndoorMin,
			IndoorMax:  c.HVAC.Heating.TemperatureThresholds.IndoorMax,
			OutdoorMin: c.HVAC.Heating.TemperatureThresholds.OutdoorMin,
			OutdoorMax: c.HVAC.Heating.TemperatureThresholds.OutdoorMax,
		},
	}
	if c.HVAC.Heating.Defrost != nil {
		heating.Defrost = &model.Defrost{
			TemperatureThreshold: c.HVAC.Heating.Defrost.TemperatureThreshold,
			PeriodSeconds:        c.HVAC.Heating.Defrost.PeriodSeconds,
			DurationSeconds:      c.HVAC.Heating.Defrost.DurationSeconds,
		}
	}

	cooling := model.CoolingParams{
		Temperature: c.HVAC.Cooling.Temperature,
		PresetMode:  c.HVAC.Cooling.PresetMode,
		Thresholds: model.Thresholds{
			IndoorMin:  c.HVAC.Cooling.TemperatureThresholds.IndoorMin,
			IndoorMax:  c.HVAC.Cooling.TemperatureThresholds.IndoorMax,
			OutdoorMin: c.HVAC.Cooling.TemperatureThresholds.OutdoorMin,
			OutdoorMax: c.HVAC.Cooling.TemperatureThresholds.OutdoorMax,
		},
	}

	var activeHours *model.ActiveHours
	if c.HVAC.ActiveHours != nil {
		activeHours = &model.ActiveHours{
			Start:        c.HVAC.ActiveHours.Start,
			StartWeekday: c.HVAC.ActiveHours.StartWeekday,
			End:          c.HVAC.ActiveHours.End,
		}
	}

	units := make([]model.HVACUnit, 0, len(c.HVAC.HVACEntities))
	for _, e := range c.HVAC.HVACEntities {
		units = append(units, model.HVACUnit{
			EntityID:        e.EntityID,
			Enabled:         e.Enabled,
			SupportsDefrost: e.Defrost,
		})
	}

	return heating, cooling, activeHours, units
}
