package status

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "cipherswarm_dispatch"

// Exporter mirrors snapshots into prometheus gauges on a private registry.
type Exporter struct {
	registry *prometheus.Registry

	status          prometheus.Gauge
	progress        prometheus.Gauge
	progressEnd     prometheus.Gauge
	restorePoint    prometheus.Gauge
	recoveredHashes prometheus.Gauge
	recoveredSalts  prometheus.Gauge
	rejected        prometheus.Gauge
	devicesActive   prometheus.Gauge
	speed           *prometheus.GaugeVec
	cracked         *prometheus.GaugeVec
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: metricsNamespace, Name: name, Help: help})
}

// NewExporter registers the dispatch gauges on a fresh registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry:        prometheus.NewRegistry(),
		status:          newGauge("status", "Numeric run status."),
		progress:        newGauge("progress_current", "Candidate-salt pairs covered."),
		progressEnd:     newGauge("progress_end", "Candidate-salt pairs in the segment."),
		restorePoint:    newGauge("restore_point", "Base-word offset a restore would resume from."),
		recoveredHashes: newGauge("recovered_digests", "Digests cracked so far."),
		recoveredSalts:  newGauge("recovered_salts", "Salts with every digest cracked."),
		rejected:        newGauge("rejected_candidates", "Candidates dropped by the length filter."),
		devicesActive:   newGauge("devices_active", "Devices that have not been skipped."),
		speed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "device_speed_hashes_per_second",
			Help:      "Rolling hash rate per device; absent for skipped devices.",
		}, []string{"device_id", "device_type"}),
		cracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "device_cracked_digests",
			Help:      "Digests cracked per device.",
		}, []string{"device_id", "device_type"}),
	}

	e.registry.MustRegister(
		e.status, e.progress, e.progressEnd, e.restorePoint, e.recoveredHashes, e.recoveredSalts,
		e.rejected, e.devicesActive, e.speed, e.cracked,
	)

	return e
}

// Registry returns the registry the gauges live on.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Update sets every gauge from snap.
func (e *Exporter) Update(snap Snapshot) {
	e.status.Set(float64(snap.Status))

	if len(snap.Progress) == 2 { //nolint:mnd // [cur, end]
		e.progress.Set(float64(snap.Progress[0]))
		e.progressEnd.Set(float64(snap.Progress[1]))
	}

	e.restorePoint.Set(float64(snap.RestorePoint))

	if len(snap.RecoveredHashes) > 0 {
		e.recoveredHashes.Set(float64(snap.RecoveredHashes[0]))
	}

	if len(snap.RecoveredSalts) > 0 {
		e.recoveredSalts.Set(float64(snap.RecoveredSalts[0]))
	}

	e.rejected.Set(float64(snap.Rejected))
	e.devicesActive.Set(float64(snap.DevicesActive))

	for _, d := range snap.Devices {
		labels := prometheus.Labels{"device_id": strconv.Itoa(d.DeviceID), "device_type": d.DeviceType}

		e.cracked.With(labels).Set(float64(d.Cracked))

		if d.Skipped {
			e.speed.Delete(labels)

			continue
		}

		e.speed.With(labels).Set(d.Speed)
	}
}

// Handler serves the registry in the prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
