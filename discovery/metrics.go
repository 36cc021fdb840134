package discovery

import (
	"errors"
	"net/netip"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geekxflood/printkit/snmp"
)

const (
	namespace = "printkit"
	subsystem = "snmp"
)

// Label names.
const (
	labelPrinter     = "printer"
	labelReason      = "reason"
	labelResult      = "result"
	labelSupply      = "supply"
	labelDescription = "description"
)

// Walk results.
const (
	walkOK      = "ok"
	walkPartial = "partial"
	walkFailed  = "failed"
)

// Collector holds the discovery and transport metrics. It implements
// snmp.Observer, so it can be set as the Observer of every Conn a Scanner
// opens.
type Collector struct {
	// PacketsSent counts requests written to the socket.
	PacketsSent prometheus.Counter

	// PacketsReceived counts datagrams read from the socket, decodable or not.
	PacketsReceived prometheus.Counter

	// BytesSent and BytesReceived count datagram payload bytes.
	BytesSent     prometheus.Counter
	BytesReceived prometheus.Counter

	// DecodeErrors counts undecodable datagrams by DecodeError reason.
	DecodeErrors *prometheus.CounterVec

	// Timeouts counts receive windows that elapsed without a datagram.
	// Every broadcast ends with one.
	Timeouts prometheus.Counter

	// Walks counts supply table walks by result.
	Walks *prometheus.CounterVec

	// Printers is the number of printers found by the last scan.
	Printers prometheus.Gauge

	// PrinterUp is 1 for printers that answered the last probe.
	PrinterUp *prometheus.GaugeVec

	// SupplyLevel and SupplyPercent mirror prtMarkerSuppliesLevel.
	SupplyLevel   *prometheus.GaugeVec
	SupplyPercent *prometheus.GaugeVec
}

// NewCollector creates a Collector registered against reg. A nil reg means
// prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(
		c.PacketsSent,
		c.PacketsReceived,
		c.BytesSent,
		c.BytesReceived,
		c.DecodeErrors,
		c.Timeouts,
		c.Walks,
		c.Printers,
		c.PrinterUp,
		c.SupplyLevel,
		c.SupplyPercent,
	)
	return c
}

func newMetrics() *Collector {
	supplyLabels := []string{labelPrinter, labelSupply, labelDescription}

	return &Collector{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total SNMP requests sent.",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total SNMP datagrams received.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sent_bytes_total",
			Help:      "Total bytes of SNMP requests sent.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "received_bytes_total",
			Help:      "Total bytes of SNMP datagrams received.",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "Total SNMP datagrams that failed to decode.",
		}, []string{labelReason}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "timeouts_total",
			Help:      "Total receive windows that ended without a response.",
		}),
		Walks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "walks_total",
			Help:      "Total table walks by result.",
		}, []string{labelResult}),
		Printers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "printers",
			Help:      "Number of printers found by the last scan.",
		}),
		PrinterUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "printer_up",
			Help:      "Whether the printer answered the last probe.",
		}, []string{labelPrinter}),
		SupplyLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "printer",
			Name:      "supply_level",
			Help:      "Current marker supply level in supply units; negative values are Printer MIB unknown markers.",
		}, supplyLabels),
		SupplyPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "printer",
			Name:      "supply_percent",
			Help:      "Current marker supply level as a percentage of capacity.",
		}, supplyLabels),
	}
}

// PacketSent implements snmp.Observer.
func (c *Collector) PacketSent(_ netip.Addr, size int) {
	c.PacketsSent.Inc()
	c.BytesSent.Add(float64(size))
}

// PacketReceived implements snmp.Observer.
func (c *Collector) PacketReceived(_ netip.Addr, size int, err error) {
	c.PacketsReceived.Inc()
	c.BytesReceived.Add(float64(size))

	var decodeErr *snmp.DecodeError
	if errors.As(err, &decodeErr) {
		c.DecodeErrors.WithLabelValues(decodeErr.Reason).Inc()
	}
}

// ResponseTimeout implements snmp.Observer.
func (c *Collector) ResponseTimeout() {
	c.Timeouts.Inc()
}

// WalkDone records the outcome of a walk that delivered count bindings.
func (c *Collector) WalkDone(count int, err error) {
	switch {
	case err != nil && count > 0:
		c.Walks.WithLabelValues(walkPartial).Inc()
	case err != nil:
		c.Walks.WithLabelValues(walkFailed).Inc()
	default:
		c.Walks.WithLabelValues(walkOK).Inc()
	}
}

// PrinterDown marks a printer that did not answer its probe.
func (c *Collector) PrinterDown(addr netip.Addr) {
	c.PrinterUp.WithLabelValues(addr.String()).Set(0)
}

// ObservePrinters replaces the printer and supply gauges with the state of
// printers.
func (c *Collector) ObservePrinters(printers []*Printer) {
	c.Printers.Set(float64(len(printers)))
	for _, p := range printers {
		addr := p.Addr.String()
		c.PrinterUp.WithLabelValues(addr).Set(1)
		c.SupplyLevel.DeletePartialMatch(prometheus.Labels{labelPrinter: addr})
		c.SupplyPercent.DeletePartialMatch(prometheus.Labels{labelPrinter: addr})
		for _, s := range p.Supplies {
			index := strconv.Itoa(s.Index)
			c.SupplyLevel.WithLabelValues(addr, index, s.Description).Set(float64(s.Level))
			if percent := s.Percent(); percent >= 0 {
				c.SupplyPercent.WithLabelValues(addr, index, s.Description).Set(float64(percent))
			}
		}
	}
}
