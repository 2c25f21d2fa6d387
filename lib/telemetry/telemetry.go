// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package telemetry

import (
	"time"

	"github.com/armon/go-metrics"
)

// Config is the telemetry section of the agent configuration.
type Config struct {
	// StatsdAddr is the address of a statsd instance. If provided,
	// metrics will be sent to that instance.
	StatsdAddr string

	// StatsiteAddr is the address of a statsite instance. If provided,
	// metrics will be streamed to that instance.
	StatsiteAddr string

	// DisableHostname will disable hostname prefixing for all metrics.
	DisableHostname bool

	// MetricsPrefix is the prefix used to write stats values to.
	MetricsPrefix string
}

// sinkFn takes Config and builds a sink to be composed in the FanoutSink
type sinkFn func(Config) (metrics.MetricSink, error)

func statsiteSink(cfg Config) (metrics.MetricSink, error) {
	if cfg.StatsiteAddr == "" {
		return nil, nil
	}
	return metrics.NewStatsiteSink(cfg.StatsiteAddr)
}

func statsdSink(cfg Config) (metrics.MetricSink, error) {
	if cfg.StatsdAddr == "" {
		return nil, nil
	}
	return metrics.NewStatsdSink(cfg.StatsdAddr)
}

// Init configures the global go-metrics instance. An in-memory sink is
// always installed and returned so operators can dump it on SIGUSR1; the
// network sinks are added only when addressed.
func Init(cfg Config) (*metrics.InmemSink, error) {
	memSink := metrics.NewInmemSink(10*time.Second, time.Minute)

	sinks := metrics.FanoutSink{memSink}
	for _, fn := range []sinkFn{statsdSink, statsiteSink} {
		sink, err := fn(cfg)
		if err != nil {
			return nil, err
		}
		if sink != nil {
			sinks = append(sinks, sink)
		}
	}

	prefix := cfg.MetricsPrefix
	if prefix == "" {
		prefix = "ams"
	}
	metricsConf := metrics.DefaultConfig(prefix)
	metricsConf.EnableHostname = !cfg.DisableHostname
	metricsConf.EnableRuntimeMetrics = true

	if _, err := metrics.NewGlobal(metricsConf, sinks); err != nil {
		return nil, err
	}
	return memSink, nil
}
