package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the appointment booking flow.
type BookingMetrics struct {
	createdTotal        prometheus.Counter
	transitionsTotal    *prometheus.CounterVec
	remindersTotal      prometheus.Counter
	sweepsTotal         prometheus.Counter
	sweptTotal          prometheus.Counter
	notifyFailuresTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casavisita",
			Subsystem: "booking",
			Name:      "appointments_created_total",
			Help:      "Total appointments created through the widget",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casavisita",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total state-machine transitions by token action and outcome",
		}, []string{"action", "outcome"}),
		remindersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casavisita",
			Subsystem: "booking",
			Name:      "reminders_dispatched_total",
			Help:      "Total reminder emails dispatched",
		}),
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casavisita",
			Subsystem: "booking",
			Name:      "sweeps_total",
			Help:      "Total stale-appointment sweep iterations",
		}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casavisita",
			Subsystem: "booking",
			Name:      "swept_appointments_total",
			Help:      "Total appointments auto-canceled by the sweeper",
		}),
		notifyFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casavisita",
			Subsystem: "booking",
			Name:      "notification_failures_total",
			Help:      "Total notification sends that failed, by template",
		}, []string{"template"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.createdTotal,
		m.transitionsTotal,
		m.remindersTotal,
		m.sweepsTotal,
		m.sweptTotal,
		m.notifyFailuresTotal,
	)
	return m
}

func (m *BookingMetrics) ObserveCreated() {
	if m == nil {
		return
	}
	m.createdTotal.Inc()
}

func (m *BookingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *BookingMetrics) ObserveReminderDispatched() {
	if m == nil {
		return
	}
	m.remindersTotal.Inc()
}

func (m *BookingMetrics) ObserveSweep(swept int) {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
	m.sweptTotal.Add(float64(swept))
}

func (m *BookingMetrics) ObserveNotifyFailure(template string) {
	if m == nil {
		return
	}
	m.notifyFailuresTotal.WithLabelValues(template).Inc()
}
