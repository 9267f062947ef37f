package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements relay.Observer on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	deliveries    *prometheus.CounterVec
	hintFallbacks prometheus.Counter
	published     prometheus.Counter
	deleted       prometheus.Counter
	complaints    prometheus.Counter
	saves         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Per-recipient delivery attempts by outcome.",
		}, []string{"outcome"}),
		hintFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_reply_hint_fallbacks_total",
			Help: "Deliveries retried without a rejected reply hint.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Confirmed drafts published to the ledger.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_deleted_messages_total",
			Help: "Delivered copies deleted from recipients.",
		}),
		complaints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_complaints_total",
			Help: "Complaints filed.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_saves_total",
			Help: "State saves by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(m.deliveries, m.hintFallbacks, m.published, m.deleted, m.complaints, m.saves)
	return m
}

// Gauge registers a value sampled at scrape time, e.g. the user count.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Router serves /metrics and a /healthz health check.
func (m *Metrics) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func (m *Metrics) Delivery(ok bool) { m.deliveries.WithLabelValues(outcome(ok)).Inc() }

func (m *Metrics) ReplyHintFallback() { m.hintFallbacks.Inc() }

func (m *Metrics) Published() { m.published.Inc() }

func (m *Metrics) MessagesDeleted(n int) { m.deleted.Add(float64(n)) }

func (m *Metrics) ComplaintFiled() { m.complaints.Inc() }

func (m *Metrics) Saved(err error) { m.saves.WithLabelValues(outcome(err == nil)).Inc() }
