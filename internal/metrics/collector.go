// Package metrics provides Prometheus instrumentation for rangerwatch.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/rangerwatch/internal/drift"
	"github.com/ppiankov/rangerwatch/internal/monitor"
	"github.com/ppiankov/rangerwatch/internal/store"
)

// Collector translates a snapshot of check results into Prometheus gauges.
type Collector struct {
	checkStatus   *prometheus.GaugeVec
	checkDuration *prometheus.GaugeVec
	enabled       *prometheus.GaugeVec
	auditEnabled  *prometheus.GaugeVec
	recursive     *prometheus.GaugeVec
	checksTotal   *prometheus.GaugeVec
	cycleDuration prometheus.Gauge
	lastCycle     prometheus.Gauge
	changes       *prometheus.CounterVec
	mu            sync.Mutex
}

// NewCollector creates and registers metrics on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "check_status",
			Help:      "Check outcome as a plugin exit code (0=ok, 1=warning, 2=critical, 3=unknown).",
		}, []string{"check"}),

		checkDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "check_duration_seconds",
			Help:      "Duration of the last run of each check in seconds.",
		}, []string{"check"}),

		enabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "policy_enabled",
			Help:      "Whether the checked policy is enabled (1=yes, 0=no).",
		}, []string{"check", "policy_id", "policy"}),

		auditEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "policy_audit_enabled",
			Help:      "Whether auditing is enabled on the checked policy (1=yes, 0=no).",
		}, []string{"check", "policy_id", "policy"}),

		recursive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "policy_recursive",
			Help:      "Whether the checked policy is recursive (1=yes, 0=no).",
		}, []string{"check", "policy_id", "policy"}),

		checksTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "checks_total",
			Help:      "Number of checks by severity in the last cycle.",
		}, []string{"severity"}),

		cycleDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of the last check cycle in seconds.",
		}),

		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rangerwatch",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last check cycle completed.",
		}),

		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rangerwatch",
			Name:      "policy_changes_total",
			Help:      "Policy changes observed between consecutive cycles.",
		}, []string{"check", "kind"}),
	}

	reg.MustRegister(c.checkStatus)
	reg.MustRegister(c.checkDuration)
	reg.MustRegister(c.enabled)
	reg.MustRegister(c.auditEnabled)
	reg.MustRegister(c.recursive)
	reg.MustRegister(c.checksTotal)
	reg.MustRegister(c.cycleDuration)
	reg.MustRegister(c.lastCycle)
	reg.MustRegister(c.changes)

	return c
}

// Update replaces all metric values from the given snapshot.
func (c *Collector) Update(snap store.Snapshot, cycleDuration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkStatus.Reset()
	c.checkDuration.Reset()
	c.enabled.Reset()
	c.auditEnabled.Reset()
	c.recursive.Reset()
	c.checksTotal.Reset()

	c.cycleDuration.Set(cycleDuration.Seconds())
	if !snap.At.IsZero() {
		c.lastCycle.Set(float64(snap.At.Unix()))
	}

	counts := map[store.Severity]int{
		store.SeverityOK:       0,
		store.SeverityWarning:  0,
		store.SeverityCritical: 0,
		store.SeverityUnknown:  0,
	}

	for i := range snap.Results {
		r := &snap.Results[i]
		counts[r.Severity]++

		check := prometheus.Labels{"check": r.Check}
		c.checkStatus.With(check).Set(float64(monitor.ExitCode(r.Severity)))
		c.checkDuration.With(check).Set(r.Duration.Seconds())

		if !r.Resolved {
			continue
		}
		labels := prometheus.Labels{
			"check":     r.Check,
			"policy_id": r.PolicyID,
			"policy":    r.PolicyName,
		}
		c.enabled.With(labels).Set(boolGauge(r.Enabled))
		c.auditEnabled.With(labels).Set(boolGauge(r.Auditing))
		c.recursive.With(labels).Set(boolGauge(r.Recursive))
	}

	for sev, count := range counts {
		c.checksTotal.With(prometheus.Labels{"severity": string(sev)}).Set(float64(count))
	}
}

// RecordChanges counts drift between cycles. Counters are never reset.
func (c *Collector) RecordChanges(changes []drift.Change) {
	for i := range changes {
		c.changes.WithLabelValues(changes[i].Check, changes[i].Kind).Inc()
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
