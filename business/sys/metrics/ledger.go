package metrics

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/prometheus/client_golang/prometheus"
)

// Ledger is the behavior required to read the ledger metrics from a node.
type Ledger interface {
	QueryChainLength() int
	QueryMempoolLength() int
	QueryKnownPeersLength() int
	RetrieveStats() state.Stats
}

// LedgerCollector reads the chain and activity counters from the node
// every time the registry is scraped.
type LedgerCollector struct {
	ledger            Ledger
	chainLength       *prometheus.Desc
	pendingTxs        *prometheus.Desc
	knownPeers        *prometheus.Desc
	blocksMined       *prometheus.Desc
	blocksAccepted    *prometheus.Desc
	chainReplacements *prometheus.Desc
}

// NewLedgerCollector constructs a collector for the specified node.
func NewLedgerCollector(ledger Ledger) *LedgerCollector {
	desc := func(subsystem string, name string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}

	return &LedgerCollector{
		ledger:            ledger,
		chainLength:       desc("chain", "length", "Number of blocks in the chain, genesis included."),
		pendingTxs:        desc("mempool", "pending_transactions", "Number of transactions waiting to be mined."),
		knownPeers:        desc("peers", "known", "Number of known peer nodes."),
		blocksMined:       desc("chain", "blocks_mined_total", "Number of blocks mined by this node."),
		blocksAccepted:    desc("chain", "blocks_accepted_total", "Number of blocks accepted from peers."),
		chainReplacements: desc("chain", "replacements_total", "Number of times the chain was replaced by a peer's chain."),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.chainLength
	ch <- c.pendingTxs
	ch <- c.knownPeers
	ch <- c.blocksMined
	ch <- c.blocksAccepted
	ch <- c.chainReplacements
}

// Collect implements the prometheus.Collector interface.
func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.ledger.RetrieveStats()

	ch <- prometheus.MustNewConstMetric(c.chainLength, prometheus.GaugeValue, float64(c.ledger.QueryChainLength()))
	ch <- prometheus.MustNewConstMetric(c.pendingTxs, prometheus.GaugeValue, float64(c.ledger.QueryMempoolLength()))
	ch <- prometheus.MustNewConstMetric(c.knownPeers, prometheus.GaugeValue, float64(c.ledger.QueryKnownPeersLength()))
	ch <- prometheus.MustNewConstMetric(c.blocksMined, prometheus.CounterValue, float64(stats.BlocksMined))
	ch <- prometheus.MustNewConstMetric(c.blocksAccepted, prometheus.CounterValue, float64(stats.BlocksAccepted))
	ch <- prometheus.MustNewConstMetric(c.chainReplacements, prometheus.CounterValue, float64(stats.ChainReplacements))
}
