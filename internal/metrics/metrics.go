// Package metrics exposes Prometheus instrumentation for both daemon roles.
// Collectors register lazily so tests and commands that never scrape pay
// nothing.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	framesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "frames_total",
			Help:      "Frames read from the decoder by record type.",
		},
		[]string{"type"},
	)
	frameErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "frame_errors_total",
			Help:      "Frames that failed structural decode.",
		},
	)
	crcMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "crc_mismatches_total",
			Help:      "Frames whose checksum did not verify.",
		},
	)
	bytesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "bytes_dropped_total",
			Help:      "Bytes discarded while hunting for a frame start.",
		},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "reconnects_total",
			Help:      "Times the decoder session was re-established.",
		},
	)
	connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "connected",
			Help:      "Whether the decoder session is currently up.",
		},
	)
	decoderHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "trackside",
			Subsystem: "decoder",
			Name:      "status",
			Help:      "Latest decoder status readings by field.",
		},
		[]string{"field"},
	)
	clockSynced = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trackside",
			Subsystem: "timesync",
			Name:      "synced",
			Help:      "Whether a usable decoder time is available.",
		},
	)
	passesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "passes_total",
			Help:      "Raw passes persisted.",
		},
	)
	duplicatePasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "duplicate_passes_total",
			Help:      "Replayed passes ignored by the unique passing number.",
		},
	)
	lapsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "laps_total",
			Help:      "Laps the judge accepted.",
		},
	)
	lapsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "lap_skips_total",
			Help:      "Passes rejected for arriving under the minimum lap time.",
		},
	)
	heatsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "heats_started_total",
			Help:      "Heats opened by a first pass after green.",
		},
	)
	heatsFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "heats_finished_total",
			Help:      "Heats driven to the finished state.",
		},
	)
	activeHeat = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trackside",
			Subsystem: "race",
			Name:      "active_heat_id",
			Help:      "Identifier of the unfinished heat, zero when idle.",
		},
	)
)

// Register installs all collectors into the default registry. Safe to call
// from every Record helper.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesRead,
			frameErrors,
			crcMismatches,
			bytesDropped,
			reconnects,
			connected,
			decoderHealth,
			clockSynced,
			passesIngested,
			duplicatePasses,
			lapsAccepted,
			lapsSkipped,
			heatsStarted,
			heatsFinished,
			activeHeat,
		)
	})
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// RecordFrame counts one decoded frame by record type name.
func RecordFrame(recordType string) {
	Register()
	framesRead.WithLabelValues(recordType).Inc()
}

// RecordFrameError counts a frame that failed structural decode.
func RecordFrameError() {
	Register()
	frameErrors.Inc()
}

// RecordCRCMismatch counts a frame whose checksum did not verify.
func RecordCRCMismatch() {
	Register()
	crcMismatches.Inc()
}

// RecordBytesDropped counts garbage bytes discarded from the stream.
func RecordBytesDropped(n int) {
	if n <= 0 {
		return
	}
	Register()
	bytesDropped.Add(float64(n))
}

// RecordReconnect counts a re-established decoder session.
func RecordReconnect() {
	Register()
	reconnects.Inc()
}

// SetDecoderConnected tracks the decoder session state.
func SetDecoderConnected(up bool) {
	Register()
	if up {
		connected.Set(1)
	} else {
		connected.Set(0)
	}
}

// SetDecoderHealth publishes the readings from a STATUS record.
func SetDecoderHealth(noise, temperature, voltage, gps float64) {
	Register()
	decoderHealth.WithLabelValues("noise").Set(noise)
	decoderHealth.WithLabelValues("temperature").Set(temperature)
	decoderHealth.WithLabelValues("input_voltage").Set(voltage)
	decoderHealth.WithLabelValues("gps").Set(gps)
}

// SetClockSynced tracks whether a usable decoder time is available.
func SetClockSynced(ok bool) {
	Register()
	if ok {
		clockSynced.Set(1)
	} else {
		clockSynced.Set(0)
	}
}

// RecordPass counts a persisted pass, or a duplicate when created is false.
func RecordPass(created bool) {
	Register()
	if created {
		passesIngested.Inc()
	} else {
		duplicatePasses.Inc()
	}
}

// RecordLap counts a judged pass by verdict.
func RecordLap(accepted bool) {
	Register()
	if accepted {
		lapsAccepted.Inc()
	} else {
		lapsSkipped.Inc()
	}
}

// RecordHeatStarted counts a newly opened heat.
func RecordHeatStarted() {
	Register()
	heatsStarted.Inc()
}

// RecordHeatFinished counts a heat driven to finished.
func RecordHeatFinished() {
	Register()
	heatsFinished.Inc()
}

// SetActiveHeat publishes the unfinished heat's identifier, zero when idle.
func SetActiveHeat(id int64) {
	Register()
	activeHeat.Set(float64(id))
}
