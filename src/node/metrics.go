package node

import (
	"math/big"

	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "surety"

// Metrics are the prometheus collectors updated by the node loop.
type Metrics struct {
	Txs       *prometheus.CounterVec
	Blocks    prometheus.Counter
	Events    *prometheus.CounterVec
	Payouts   prometheus.Counter
	LastBlock prometheus.Gauge
}

// NewMetrics registers the node collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Txs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs_total",
			Help:      "Committed transactions by type and result.",
		}, []string{"type", "result"}),
		Blocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Committed blocks.",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Ledger events by type.",
		}, []string{"type"}),
		Payouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_wei_total",
			Help:      "Insurance credit granted to passengers, in wei.",
		}),
		LastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_block_index",
			Help:      "Index of the last committed block.",
		}),
	}
}

func (m *Metrics) observeReceipt(r *proxy.Receipt) {
	result := "ok"
	if r.ErrType != "" {
		result = r.ErrType
	} else if !r.Succeeded() {
		result = "error"
	}
	m.Txs.WithLabelValues(r.Type.String(), result).Inc()

	for _, ev := range r.Events {
		m.Events.WithLabelValues(ev.Type.String()).Inc()
		if ev.Type == ledger.InsureeCredited {
			m.Payouts.Add(weiToFloat(ev.AmountWei()))
		}
	}
}

func weiToFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(wei).Float64()
	return f
}
