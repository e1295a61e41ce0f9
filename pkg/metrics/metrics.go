// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tokenharness.
//
// go-tokenharness is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics records provisioning and test-run counters on a private
// Prometheus registry and dumps them in text exposition format at the end
// of a run, for collection by CI textfile scrapers.
package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the harness run counters. A nil *Metrics is a valid no-op
// receiver so callers never need to branch on metrics being enabled.
type Metrics struct {
	registry *prometheus.Registry

	testsTotal   *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
	provisioning *prometheus.CounterVec
	objects      *prometheus.CounterVec
}

// New creates a metrics set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenharness",
			Name:      "tests_total",
			Help:      "Test case executions by suite and status.",
		}, []string{"suite", "status"}),
		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokenharness",
			Name:      "test_duration_seconds",
			Help:      "Wall-clock duration of test case processes.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"suite"}),
		provisioning: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenharness",
			Name:      "provisioning_total",
			Help:      "Provisioning outcomes by suite and status.",
		}, []string{"suite", "status"}),
		objects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenharness",
			Name:      "objects_provisioned_total",
			Help:      "Token objects created by suite and kind.",
		}, []string{"suite", "kind"}),
	}
}

// RecordTest counts one (test, suite) execution with its duration.
func (m *Metrics) RecordTest(suite, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.testsTotal.WithLabelValues(suite, status).Inc()
	m.testDuration.WithLabelValues(suite).Observe(d.Seconds())
}

// RecordProvisioning counts one provisioning outcome.
func (m *Metrics) RecordProvisioning(suite, status string) {
	if m == nil {
		return
	}
	m.provisioning.WithLabelValues(suite, status).Inc()
}

// RecordObject counts one provisioned token object (key pair, cert, import).
func (m *Metrics) RecordObject(suite, kind string) {
	if m == nil {
		return
	}
	m.objects.WithLabelValues(suite, kind).Inc()
}

// WriteTextfile dumps the registry in Prometheus text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
