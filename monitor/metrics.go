package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "fallsense_"

// Metrics holds the session level prometheus collectors
type Metrics struct {
	framesTotal    prometheus.Counter
	framesAbsent   prometheus.Counter
	framesOutside  prometheus.Counter
	updatesDropped prometheus.Counter

	fallsTotal     prometheus.Counter
	nearFallsTotal prometheus.Counter
	sittingTotal   prometheus.Counter
	clipsSaved     prometheus.Counter
}

// NewMetrics creates and registers the session metrics on the given
// registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {

	m := &Metrics{
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "frames_total",
			Help: "Total frames processed",
		}),
		framesAbsent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "frames_absent_total",
			Help: "Frames with no pose detected",
		}),
		framesOutside: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "frames_outside_zone_total",
			Help: "Frames discarded for falling outside the monitored zone",
		}),
		updatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "updates_dropped_total",
			Help: "Frame results dropped because the consumer lagged",
		}),
		fallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "falls_total",
			Help: "Confirmed falls",
		}),
		nearFallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "near_falls_total",
			Help: "Confirmed near falls",
		}),
		sittingTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sitting_total",
			Help: "Motions resolved as sitting",
		}),
		clipsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "clips_saved_total",
			Help: "Evidence clips written",
		}),
	}

	reg.MustRegister(m.framesTotal, m.framesAbsent, m.framesOutside,
		m.updatesDropped, m.fallsTotal, m.nearFallsTotal, m.sittingTotal,
		m.clipsSaved)

	return m
}
