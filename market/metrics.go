package market

import "github.com/prometheus/client_golang/prometheus"

var (
	itemTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusmart",
			Name:      "item_transitions_total",
			Help:      "Count of item status transitions",
		},
		[]string{"to"},
	)
	itemPublish = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusmart",
			Name:      "item_publish_total",
			Help:      "Count of publish attempts by result",
		},
		[]string{"result"},
	)
)

func init() { prometheus.MustRegister(itemTransitions, itemPublish) }
