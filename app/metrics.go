package app

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "registry"

type Metrics struct {
	ProposalsCreated  prometheus.Counter
	ProposalsAccepted prometheus.Counter
	VotesCounted      prometheus.Counter
	RejectedTxs       *prometheus.CounterVec
	BlockTxs          prometheus.Histogram
}

// NewMetrics registers the app metrics on reg. A nil reg leaves them
// unregistered, which tests rely on.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProposalsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "proposals_created_total",
			Help:      "Number of proposals created.",
		}),
		ProposalsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "proposals_accepted_total",
			Help:      "Number of proposals that reached their quorum.",
		}),
		VotesCounted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "votes_counted_total",
			Help:      "Number of votes counted.",
		}),
		RejectedTxs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "rejected_txs_total",
			Help:      "Number of txs that failed in a finalized block, by result code.",
		}, []string{"code"}),
		BlockTxs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "block_txs",
			Help:      "Number of txs per finalized block.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ProposalsCreated, m.ProposalsAccepted, m.VotesCounted, m.RejectedTxs, m.BlockTxs)
	}
	return m
}

func NopMetrics() *Metrics {
	return NewMetrics("", nil)
}

func (m *Metrics) rejected(code uint32) {
	m.RejectedTxs.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}
