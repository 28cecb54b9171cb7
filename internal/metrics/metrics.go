/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package metrics collects build statistics for a single duet invocation.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the collectors for one build.
type Metrics struct {
	registry *prometheus.Registry

	projects        *prometheus.CounterVec
	projectDuration *prometheus.HistogramVec
	emitted         *prometheus.CounterVec
	diagnostics     *prometheus.CounterVec
	resolutions     *prometheus.GaugeVec
	workers         prometheus.Gauge
}

// New registers collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		projects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duet_projects_built_total",
				Help: "Number of projects built, by outcome.",
			},
			[]string{"status"},
		),
		projectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "duet_project_build_duration_seconds",
				Help:    "Time taken to build one project, including every format.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		emitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duet_emitted_files_total",
				Help: "Number of files written, by output format.",
			},
			[]string{"format"},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duet_compiler_diagnostics_total",
				Help: "Number of compiler diagnostics reported, by category.",
			},
			[]string{"category"},
		),
		resolutions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "duet_resolution_cache_lookups",
				Help: "Module resolution cache lookups in the root process, by result.",
			},
			[]string{"result"},
		),
		workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "duet_workers_running",
				Help: "Number of reference workers currently running.",
			},
		),
	}
	m.registry.MustRegister(
		m.projects,
		m.projectDuration,
		m.emitted,
		m.diagnostics,
		m.resolutions,
		m.workers,
	)
	return m
}

// Registry exposes the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveProject records a finished project. kind is "root" or "reference".
func (m *Metrics) ObserveProject(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.projects.WithLabelValues(status).Inc()
	m.projectDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AddEmitted counts written files for a format.
func (m *Metrics) AddEmitted(format string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.emitted.WithLabelValues(format).Add(float64(n))
}

// AddDiagnostic counts one compiler diagnostic.
func (m *Metrics) AddDiagnostic(category string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(category).Inc()
}

// SetResolutionCache records cache statistics.
func (m *Metrics) SetResolutionCache(hits, misses int64) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues("hit").Set(float64(hits))
	m.resolutions.WithLabelValues("miss").Set(float64(misses))
}

// WorkerStarted and WorkerFinished track running workers.
func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.workers.Inc()
	}
}

func (m *Metrics) WorkerFinished() {
	if m != nil {
		m.workers.Dec()
	}
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
