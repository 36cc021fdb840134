package discovery

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/geekxflood/printkit/snmp"
)

// Well-known objects read from each printer.
var (
	oidSysDescr          = snmp.MustParseOID("1.3.6.1.2.1.1.1.0")
	oidSysName           = snmp.MustParseOID("1.3.6.1.2.1.1.5.0")
	oidSysLocation       = snmp.MustParseOID("1.3.6.1.2.1.1.6.0")
	oidDeviceType        = snmp.MustParseOID("1.3.6.1.2.1.25.3.2.1.2.1")
	oidDeviceDescr       = snmp.MustParseOID("1.3.6.1.2.1.25.3.2.1.3.1")
	oidPrinterStatus     = snmp.MustParseOID("1.3.6.1.2.1.25.3.5.1.1.1")
	oidDetectedErrState  = snmp.MustParseOID("1.3.6.1.2.1.25.3.5.1.2.1")
	oidSuppliesEntry     = snmp.MustParseOID("1.3.6.1.2.1.43.11.1.1")
	oidDeviceTypePrinter = snmp.MustParseOID("1.3.6.1.2.1.25.3.1.5")
)

// prtMarkerSuppliesEntry columns.
const (
	columnSupplyClass       = 4
	columnSupplyType        = 5
	columnSupplyDescription = 6
	columnSupplyUnit        = 7
	columnSupplyMax         = 8
	columnSupplyLevel       = 9
)

// PrinterStatus is hrPrinterStatus.
type PrinterStatus int

const (
	StatusOther    PrinterStatus = 1
	StatusUnknown  PrinterStatus = 2
	StatusIdle     PrinterStatus = 3
	StatusPrinting PrinterStatus = 4
	StatusWarmup   PrinterStatus = 5
)

func (s PrinterStatus) String() string {
	switch s {
	case StatusOther:
		return "other"
	case StatusIdle:
		return "idle"
	case StatusPrinting:
		return "printing"
	case StatusWarmup:
		return "warmup"
	}
	return "unknown"
}

// Printer is what a probe learned about one network printer.
type Printer struct {
	Addr        netip.Addr
	Name        string
	Description string
	Location    string
	Make        string
	Status      PrinterStatus
	Supplies    []Supply
	Reasons     []string
	LastSeen    time.Time
}

// URI is the device URI for the printer.
func (p *Printer) URI() string {
	if p.Addr.Is6() {
		return fmt.Sprintf("snmp://[%s]", p.Addr)
	}
	return "snmp://" + p.Addr.String()
}

// Supply is one row of prtMarkerSuppliesTable.
type Supply struct {
	Index       int    `json:"index"`
	Class       int    `json:"class"`
	Type        int    `json:"type"`
	Description string `json:"description"`
	Unit        int    `json:"unit"`
	Max         int    `json:"max"`
	Level       int    `json:"level"`
}

// Percent is Level as a percentage of Max, or -1 when either is one of the
// Printer MIB's unknown markers (negative values) or Max is zero.
func (s Supply) Percent() int {
	if s.Max <= 0 || s.Level < 0 {
		return -1
	}
	percent := s.Level * 100 / s.Max
	if percent > 100 {
		percent = 100
	}
	return percent
}
