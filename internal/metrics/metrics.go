package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_checkouts_total",
		Help: "Checkout attempts by result kind.",
	}, []string{"result"})

	ReservationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_reservations_rejected_total",
		Help: "Conditional stock decrements rejected for insufficient stock.",
	})

	Compensations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_reservation_compensations_total",
		Help: "Reserved lines released because a later line was rejected.",
	})

	OrderCommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_order_commit_failures_total",
		Help: "Checkouts that committed stock but could not create every order.",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_transitions_total",
		Help: "Applied order status transitions by target status.",
	}, []string{"status"})

	Ratings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_ratings_total",
		Help: "Ratings recorded by direction.",
	}, []string{"direction"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_notifications_dropped_total",
		Help: "Notification events dropped because the outbound queue was full.",
	})

	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_notifications_delivered_total",
		Help: "Notifications written to the in-app inbox by event type.",
	}, []string{"event"})
)
