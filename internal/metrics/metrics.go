package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the site's collectors on a private prometheus registry.
type Registry struct {
	registry     *prometheus.Registry
	connects     *prometheus.CounterVec
	mints        *prometheus.CounterVec
	events       *prometheus.CounterVec
	readFailures *prometheus.CounterVec
	mintCount    prometheus.Gauge
	maxSupply    prometheus.Gauge
}

func New() *Registry {
	connects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stickfigures_connects_total",
		Help: "Wallet connection attempts",
	}, []string{"result"})

	mints := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stickfigures_mints_total",
		Help: "Mint submissions by outcome",
	}, []string{"result"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stickfigures_mint_events_total",
		Help: "NewDeveloper events observed",
	}, []string{"origin"})

	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stickfigures_read_failures_total",
		Help: "Failed contract read calls",
	}, []string{"method"})

	count := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stickfigures_mint_count",
		Help: "Minted tokens as last read from the contract",
	})

	supply := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stickfigures_max_supply",
		Help: "Max supply as last read from the contract",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(connects, mints, events, reads, count, supply)

	return &Registry{
		registry:     r,
		connects:     connects,
		mints:        mints,
		events:       events,
		readFailures: reads,
		mintCount:    count,
		maxSupply:    supply,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Registry) IncConnect(result string) {
	m.connects.WithLabelValues(result).Inc()
}

func (m *Registry) IncMint(result string) {
	m.mints.WithLabelValues(result).Inc()
}

func (m *Registry) IncEvent(origin string) {
	m.events.WithLabelValues(origin).Inc()
}

func (m *Registry) IncReadFailure(method string) {
	m.readFailures.WithLabelValues(method).Inc()
}

func (m *Registry) SetCounts(mintCount, maxSupply uint64) {
	m.mintCount.Set(float64(mintCount))
	m.maxSupply.Set(float64(maxSupply))
}
