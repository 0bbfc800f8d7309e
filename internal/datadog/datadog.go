// Package datadog emits statsd metrics for temperatures, state
// transitions, and cycling alerts.
package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"
)

var dogstatsd *statsd.Client
var enabled bool

// Init creates the DogStatsD client for the given agent address,
// namespace, and constant tags. A failure to create the client
// disables metrics rather than failing startup.
func Init(agentAddr, namespace string, tags []string, enableMetrics bool) {
	enabled = enableMetrics
	if !enabled {
		return
	}

	var err error
	dogstatsd, err = statsd.New(agentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = namespace
	dogstatsd.Tags = tags

	log.Info().Str("addr", agentAddr).Str("namespace", namespace).Strs("tags", tags).Msg("datadog metrics initialized")
}

// Gauge emits a gauge metric.
func Gauge(name string, value float64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Gauge(name, value, tags, 1); err != nil && enabled {
		log.Warn().Err(err).Str("metric", name).Msg("failed to emit gauge metric")
	}
}

// Count emits a counter metric, used for state transitions and
// cycling alerts.
func Count(name string, value int64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Count(name, value, tags, 1); err != nil && enabled {
		log.Warn().Err(err).Str("metric", name).Msg("failed to emit count metric")
	}
}
