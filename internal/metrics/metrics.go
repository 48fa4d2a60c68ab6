package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the pipeline counters on a private Prometheus registry.
// It implements domain.MetricsSink.
type Registry struct {
	registry *prometheus.Registry

	messagesConsumed   prometheus.Counter
	paymentsSuccessful prometheus.Counter
	paymentsFailed     prometheus.Counter
	retriesTotal       prometheus.Counter
}

// NewRegistry creates the counters and registers them.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		messagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_processor_messages_consumed_total",
			Help: "Total payment messages consumed",
		}),
		paymentsSuccessful: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_processor_payments_successful_total",
			Help: "Total payments successfully processed",
		}),
		paymentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_processor_payments_failed_total",
			Help: "Total payments routed to the dead-letter queue",
		}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_processor_retries_total",
			Help: "Total retries scheduled for transient failures",
		}),
	}

	r.registry.MustRegister(
		r.messagesConsumed,
		r.paymentsSuccessful,
		r.paymentsFailed,
		r.retriesTotal,
	)
	return r
}

func (r *Registry) MessageConsumed()  { r.messagesConsumed.Inc() }
func (r *Registry) PaymentSucceeded() { r.paymentsSuccessful.Inc() }
func (r *Registry) PaymentFailed()    { r.paymentsFailed.Inc() }
func (r *Registry) RetryScheduled()   { r.retriesTotal.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
