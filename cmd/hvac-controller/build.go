package main

import (
	"time"

	"github.com/thatsimonsguy/hvac-controller/internal/actuator"
	"github.com/thatsimonsguy/hvac-controller/internal/clock"
	"github.com/thatsimonsguy/hvac-controller/internal/config"
	"github.com/thatsimonsguy/hvac-controller/internal/controllerloop"
	"github.com/thatsimonsguy/hvac-controller/internal/cyclingmonitor"
	"github.com/thatsimonsguy/hvac-controller/internal/datadog"
	"github.com/thatsimonsguy/hvac-controller/internal/evalcache"
	"github.com/thatsimonsguy/hvac-controller/internal/evaluation"
	"github.com/thatsimonsguy/hvac-controller/internal/gateway"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
	"github.com/thatsimonsguy/hvac-controller/internal/notifications"
	"github.com/thatsimonsguy/hvac-controller/internal/statemachine"
)

// components bundles everything a running controller needs, built
// once from a loaded Config by the run subcommand. The status and
// override subcommands do not build it; they talk to the running
// daemon over HTTP.
type components struct {
	cfg     config.Config
	gw      gateway.PlatformGateway
	machine *statemachine.Machine
	loop    *controllerloop.Loop
}

// buildComponents loads the config at configPath and wires every
// package together. dryRun (run --dry-run) swaps in the no-op gateway
// and turns off cycling-monitor push notifications.
func buildComponents(dryRun bool) (*components, error) {
	path := config.ConfigFileFromEnv(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	heating, cooling, activeHours, units := cfg.ToModel()

	notifications.Init(cfg.App.NtfyTopic)
	datadog.Init(cfg.App.DatadogAddr, "hvac_controller", nil, cfg.App.MetricsEnabled)

	var gw gateway.PlatformGateway
	if dryRun {
		gw = gateway.NewDryRun(nil)
	} else {
		gw = gateway.New(gateway.Config{
			WSURL:        cfg.Hass.WSURL,
			RESTURL:      cfg.Hass.RESTURL,
			Token:        cfg.Hass.Token,
			TimeoutMs:    cfg.Hass.TimeoutMs,
			MaxRetries:   cfg.Hass.MaxRetries,
			RetryDelayMs: cfg.Hass.RetryDelayMs,
		})
	}

	engine := evaluation.New(heating, cooling, activeHours)

	clk := clock.NewReal()
	initial := model.HVACContext{SystemMode: cfg.HVAC.SystemMode, CurrentHour: clk.Hour(), IsWeekday: clk.IsWeekday()}
	machine := statemachine.New(engine, clk, time.Duration(defrostDurationSeconds(heating))*time.Second, initial)

	act := actuator.New(units, gw, heating, cooling)
	cache := evalcache.New(cfg.HVAC.EvaluationCacheMs)
	monitor := cyclingmonitor.New(!dryRun)

	loop := controllerloop.New(gw, machine, act, cache, monitor, clk, cfg.HVAC.TempSensor, cfg.HVAC.OutdoorSensor,
		time.Duration(cfg.Hass.StateCheckInterval)*time.Millisecond)

	return &components{cfg: cfg, gw: gw, machine: machine, loop: loop}, nil
}

func defrostDurationSeconds(heating model.HeatingParams) int {
	if heating.Defrost == nil {
		return 0
	}
	return heating.Defrost.DurationSeconds
}
