package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Prometheus records zone-runtime lifecycle events as Prometheus
// metrics: gauges of live stubs, live services and in-flight sends,
// and counters of AddRef and Release calls. It is safe for concurrent use,
// since the underlying collectors are.
type Prometheus struct {
	liveStubs    prometheus.Gauge
	liveSends    prometheus.Gauge
	addRefTotal  prometheus.Counter
	releaseTotal prometheus.Counter
	servicesUp   prometheus.Gauge
}

// NewPrometheus creates and registers the collectors backing a
// Prometheus telemetry sink with reg. Pass prometheus.DefaultRegisterer
// to use the global registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		liveStubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonerpc",
			Name:      "live_stubs",
			Help:      "Number of object stubs currently registered across all zones.",
		}),
		liveSends: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonerpc",
			Name:      "in_flight_sends",
			Help:      "Number of Send calls currently being dispatched.",
		}),
		addRefTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonerpc",
			Name:      "add_ref_total",
			Help:      "Total number of AddRef calls observed.",
		}),
		releaseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonerpc",
			Name:      "release_total",
			Help:      "Total number of Release calls observed.",
		}),
		servicesUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonerpc",
			Name:      "services",
			Help:      "Number of zone services currently alive in this process.",
		}),
	}
	reg.MustRegister(p.liveStubs, p.liveSends, p.addRefTotal, p.releaseTotal, p.servicesUp)
	return p
}

func (p *Prometheus) OnServiceCreation(uint64) { p.servicesUp.Inc() }
func (p *Prometheus) OnServiceDeletion(uint64) { p.servicesUp.Dec() }

func (p *Prometheus) OnStubCreation(uint64, uint64) { p.liveStubs.Inc() }
func (p *Prometheus) OnStubDeletion(uint64, uint64) { p.liveStubs.Dec() }

func (p *Prometheus) OnAddRef(_, _, _ uint64)  { p.addRefTotal.Inc() }
func (p *Prometheus) OnRelease(_, _, _ uint64) { p.releaseTotal.Inc() }

func (p *Prometheus) OnSendStart(uint64, uint64) { p.liveSends.Inc() }
func (p *Prometheus) OnSendEnd(uint64, uint64)   { p.liveSends.Dec() }
