package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordpipe_orders_total",
			Help: "Orders lifecycle counter by outcome",
		},
		[]string{"outcome"}, // created|confirmed|cancelled|payment_failed
	)

	OutboxEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordpipe_outbox_events_total",
			Help: "Outbox relay publish results",
		},
		[]string{"result"}, // published|failed|dead
	)

	PaymentOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordpipe_payment_outcomes_total",
			Help: "Settlement decisions by result",
		},
		[]string{"result"}, // confirmed|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OrdersTotal,
		OutboxEventsTotal,
		PaymentOutcomesTotal,
	)
}
