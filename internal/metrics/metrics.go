// Package metrics holds the process-wide prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "presence"

var (
	RoomOccupancy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "room_occupancy",
		Help:      "Reserved plus joined occupants per room.",
	}, []string{"room"})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "joined_connections",
		Help:      "Connections currently joined to a room.",
	})

	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_subscriptions",
		Help:      "Users with an active activity feed subscription.",
	})

	PollOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_polls_total",
		Help:      "Activity feed polls by outcome.",
	}, []string{"outcome"})

	StageAdvances = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_stage_advances_total",
		Help:      "Times the shared progress advanced a stage.",
	})

	ProgressSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_saves_total",
		Help:      "Debounced progress writes by result.",
	}, []string{"result"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		RoomOccupancy, Connections, Subscriptions, PollOutcomes, StageAdvances, ProgressSaves,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
