package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "giveflow_quotes_total", Help: "Quotes calculated, by path and outcome"},
		[]string{"path", "outcome"},
	)
	DonationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "giveflow_donations_total", Help: "One-time donations executed, by path and outcome"},
		[]string{"path", "outcome"},
	)
	SubscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "giveflow_subscriptions_total", Help: "Subscriptions created, by path and outcome"},
		[]string{"path", "outcome"},
	)
	ChainListFetches = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "giveflow_chain_list_fetches_total", Help: "Chain metadata fetches that went to the provider"},
	)
)

func init() {
	prometheus.MustRegister(QuotesTotal, DonationsTotal, SubscriptionsTotal, ChainListFetches)
}

// Serve exposes /metrics on addr in the background
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
