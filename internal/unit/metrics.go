package unit

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exposes every unit's interface counters as Prometheus
// counters, the secondary pull-based stats surface SPEC_FULL.md adds
// alongside GET-PPP-STATS, grounded on the prometheus/client_golang usage
// in the sockstats and dittofs example repos.
type PoolCollector struct {
	pool *Pool

	inPackets  *prometheus.Desc
	outPackets *prometheus.Desc
	inBytes    *prometheus.Desc
	outBytes   *prometheus.Desc
	inErrors   *prometheus.Desc
	outErrors  *prometheus.Desc
	dropped    *prometheus.Desc
}

// NewPoolCollector wraps pool for registration with a prometheus.Registry.
func NewPoolCollector(pool *Pool) *PoolCollector {
	labels := []string{"unit"}
	return &PoolCollector{
		pool:       pool,
		inPackets:  prometheus.NewDesc("ppp_in_packets_total", "Inbound packets received.", labels, nil),
		outPackets: prometheus.NewDesc("ppp_out_packets_total", "Outbound packets transmitted.", labels, nil),
		inBytes:    prometheus.NewDesc("ppp_in_bytes_total", "Inbound bytes received.", labels, nil),
		outBytes:   prometheus.NewDesc("ppp_out_bytes_total", "Outbound bytes transmitted.", labels, nil),
		inErrors:   prometheus.NewDesc("ppp_in_errors_total", "Inbound errors.", labels, nil),
		outErrors:  prometheus.NewDesc("ppp_out_errors_total", "Outbound errors.", labels, nil),
		dropped:    prometheus.NewDesc("ppp_queue_dropped_total", "Packets dropped for a full queue.", append(labels, "queue"), nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inPackets
	ch <- c.outPackets
	ch <- c.inBytes
	ch <- c.outBytes
	ch <- c.inErrors
	ch <- c.outErrors
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, u := range c.pool.All() {
		label := strconv.Itoa(u.Index)
		stats := u.Counters()
		ch <- prometheus.MustNewConstMetric(c.inPackets, prometheus.CounterValue, float64(stats.InPackets), label)
		ch <- prometheus.MustNewConstMetric(c.outPackets, prometheus.CounterValue, float64(stats.OutPackets), label)
		ch <- prometheus.MustNewConstMetric(c.inBytes, prometheus.CounterValue, float64(stats.InBytes), label)
		ch <- prometheus.MustNewConstMetric(c.outBytes, prometheus.CounterValue, float64(stats.OutBytes), label)
		ch <- prometheus.MustNewConstMetric(c.inErrors, prometheus.CounterValue, float64(stats.InErrors), label)
		ch <- prometheus.MustNewConstMetric(c.outErrors, prometheus.CounterValue, float64(stats.OutErrors), label)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(u.NormalOutput.Dropped()), label, "normal")
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(u.FastOutput.Dropped()), label, "fast")
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(u.RawReceive.Dropped()), label, "raw_receive")
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(u.UserRead.Dropped()), label, "user_read")
	}
}
