// Package discovery finds network printers with SNMP and reads their
// identity, status and marker supplies.
//
// A Scanner broadcasts a GetRequest for hrDeviceType.1 and keeps the
// agents that answer hrDevicePrinter, then probes each of them on its own
// socket with a bounded pool of workers. A Poller repeats the scan on an
// interval and hands every round to a callback.
//
// # Basic Usage
//
//	scanner := discovery.NewScanner(discovery.Options{
//		Community: "public",
//		Reasons:   engine,
//		Collector: discovery.NewCollector(nil),
//	})
//	printers, err := scanner.Scan(ctx, []netip.Addr{netip.MustParseAddr("255.255.255.255")})
//	if err != nil {
//		return err
//	}
//	for _, p := range printers {
//		fmt.Println(p.URI(), p.Make, p.Reasons)
//	}
package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/reasons"
	"github.com/geekxflood/printkit/snmp"
)

// Defaults applied by NewScanner.
const (
	DefaultCommunity   = "public"
	DefaultTimeout     = time.Second
	DefaultWalkTimeout = 2 * time.Second
	DefaultWorkers     = 8
)

// Options configures a Scanner.
type Options struct {
	Community string

	// Timeout bounds each GetRequest and the window in which broadcast
	// replies are collected.
	Timeout time.Duration

	// WalkTimeout bounds each GetNextRequest of a supply table walk.
	WalkTimeout time.Duration

	// MaxRunTime bounds a whole Scan when positive.
	MaxRunTime time.Duration

	// Workers is the number of printers probed at once.
	Workers int

	// Family is "udp4" or "udp6".
	Family string

	// Conn is used for every socket the scanner opens. When Collector is
	// set and Conn.Observer is not, the collector observes the sockets.
	Conn snmp.Options

	// Reasons derives printer-state-reasons from supply levels. Nil leaves
	// only the reasons decoded from hrPrinterDetectedErrorState.
	Reasons *reasons.Engine

	Collector *Collector
	Logger    logging.Logger
}

// Scanner discovers and probes printers. It is safe for concurrent use.
type Scanner struct {
	opts   Options
	logger logging.Logger
	now    func() time.Time
}

// NewScanner returns a Scanner with defaults filled in.
func NewScanner(opts Options) *Scanner {
	if opts.Community == "" {
		opts.Community = DefaultCommunity
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WalkTimeout <= 0 {
		opts.WalkTimeout = DefaultWalkTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Family == "" {
		opts.Family = "udp4"
	}
	if opts.Collector != nil && opts.Conn.Observer == nil {
		opts.Conn.Observer = opts.Collector
	}
	logger := logging.OrDiscard(opts.Logger)
	if opts.Conn.Logger == nil {
		opts.Conn.Logger = logger
	}
	return &Scanner{opts: opts, logger: logger, now: time.Now}
}

// Scan discovers printers behind targets and probes each one.
func (s *Scanner) Scan(ctx context.Context, targets []netip.Addr) ([]*Printer, error) {
	ctx, cancel := s.withRunTime(ctx)
	defer cancel()

	addrs, err := s.Discover(ctx, targets)
	if err != nil {
		return nil, err
	}
	return s.ProbeAll(ctx, addrs)
}

// withRunTime applies MaxRunTime to ctx.
func (s *Scanner) withRunTime(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.MaxRunTime > 0 {
		return context.WithTimeout(ctx, s.opts.MaxRunTime)
	}
	return context.WithCancel(ctx)
}

// Discover sends one hrDeviceType.1 request to each target, usually a
// broadcast address, and returns the sorted addresses of the agents that
// report a printer. A target that cannot be reached is logged and skipped.
func (s *Scanner) Discover(ctx context.Context, targets []netip.Addr) ([]netip.Addr, error) {
	conn, err := snmp.Open(ctx, s.opts.Family, s.opts.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()

	seen := make(map[netip.Addr]bool)
	var found []netip.Addr
	for _, target := range targets {
		replies, err := conn.Broadcast(ctx, target, s.opts.Community, oidDeviceType, s.opts.Timeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.WarnContext(ctx, "broadcast failed", "target", target.String(), "error", err)
		}

		for _, reply := range replies {
			addr := reply.Source.Addr()
			if seen[addr] || !isPrinter(reply) {
				continue
			}
			seen[addr] = true
			found = append(found, addr)
		}
	}

	slices.SortFunc(found, netip.Addr.Compare)
	s.logger.DebugContext(ctx, "discovery finished", "targets", len(targets), "count", len(found))
	return found, nil
}

func isPrinter(p *snmp.Packet) bool {
	oid, ok := p.ObjectValue.(snmp.ObjectID)
	return ok && snmp.OID(oid).Equal(oidDeviceTypePrinter)
}

// ProbeAll probes addrs concurrently, each on its own socket, and returns
// the printers that answered sorted by address. Printers that fail are
// logged and left out; only cancellation of ctx is returned as an error.
func (s *Scanner) ProbeAll(ctx context.Context, addrs []netip.Addr) ([]*Printer, error) {
	results := make([]*Printer, len(addrs))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, addr := range addrs {
		g.Go(func() error {
			p, err := s.Probe(ctx, addr)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.WarnContext(ctx, "probe failed", "printer", addr.String(), "error", err)
				if s.opts.Collector != nil {
					s.opts.Collector.PrinterDown(addr)
				}
				return nil
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	printers := slices.DeleteFunc(results, func(p *Printer) bool { return p == nil })
	slices.SortFunc(printers, func(a, b *Printer) int { return a.Addr.Compare(b.Addr) })
	if s.opts.Collector != nil {
		s.opts.Collector.ObservePrinters(printers)
	}
	return printers, nil
}

// Probe reads one printer. sysDescr.0 must answer; every other object is
// optional.
func (s *Scanner) Probe(ctx context.Context, addr netip.Addr) (*Printer, error) {
	conn, err := snmp.Open(ctx, s.opts.Family, s.opts.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open probe socket: %w", err)
	}
	defer conn.Close()

	ctx = logging.WithPrinter(ctx, addr.String())
	pr := &prober{Scanner: s, conn: conn, addr: addr}
	return pr.run(ctx)
}

// prober holds the state of one probe.
type prober struct {
	*Scanner
	conn *snmp.Conn
	addr netip.Addr
}

func (pr *prober) run(ctx context.Context) (*Printer, error) {
	p := &Printer{Addr: pr.addr, Status: StatusUnknown}

	value, err := pr.get(ctx, oidSysDescr)
	if err != nil {
		return nil, err
	}
	p.Description, _ = snmp.AsString(value)

	p.Name = pr.optionalString(ctx, oidSysName)
	p.Location = pr.optionalString(ctx, oidSysLocation)
	p.Make = pr.optionalString(ctx, oidDeviceDescr)
	if p.Make == "" {
		p.Make = p.Description
	}

	if value, err := pr.get(ctx, oidPrinterStatus); err == nil {
		if status, ok := snmp.AsInt(value); ok {
			p.Status = PrinterStatus(status)
		}
	}

	var errorState []string
	if value, err := pr.get(ctx, oidDetectedErrState); err == nil {
		if state, ok := value.(snmp.OctetString); ok {
			errorState = reasons.DecodeErrorState(state)
		}
	}

	if p.Supplies, err = pr.supplies(ctx); err != nil {
		return nil, err
	}

	if p.Reasons, err = pr.reasons(ctx, p, errorState); err != nil {
		return nil, err
	}
	p.LastSeen = pr.now()

	pr.logger.DebugContext(ctx, "printer probed", "name", p.Name, "supplies", len(p.Supplies), "reasons", p.Reasons)
	return p, nil
}

func (pr *prober) get(ctx context.Context, oid snmp.OID) (snmp.Value, error) {
	resp, err := pr.conn.Get(ctx, pr.addr, pr.opts.Community, oid, pr.opts.Timeout)
	if err != nil {
		return nil, err
	}
	return resp.ObjectValue, nil
}

// optionalString returns the text of oid, or "" when the agent has none.
func (pr *prober) optionalString(ctx context.Context, oid snmp.OID) string {
	value, err := pr.get(ctx, oid)
	if err != nil {
		pr.logger.DebugContext(ctx, "optional object unavailable", "oid", oid.String(), "error", err)
		return ""
	}
	text, _ := snmp.AsString(value)
	return text
}

// supplies walks prtMarkerSuppliesEntry. Rows are keyed by the last arc of
// the instance and returned in index order. A printer without the table has
// no supplies.
func (pr *prober) supplies(ctx context.Context) ([]Supply, error) {
	rows := make(map[int]*Supply)
	column := len(oidSuppliesEntry)

	count, err := pr.conn.Walk(ctx, pr.addr, pr.opts.Community, oidSuppliesEntry, pr.opts.WalkTimeout, func(p *snmp.Packet) error {
		name := p.ObjectName
		if len(name) < column+2 {
			return nil
		}
		index := int(name[len(name)-1])
		row, ok := rows[index]
		if !ok {
			row = &Supply{Index: index, Max: -2, Level: -2}
			rows[index] = row
		}

		n, isInt := snmp.AsInt(p.ObjectValue)
		switch name[column] {
		case columnSupplyClass:
			if isInt {
				row.Class = int(n)
			}
		case columnSupplyType:
			if isInt {
				row.Type = int(n)
			}
		case columnSupplyDescription:
			row.Description, _ = snmp.AsString(p.ObjectValue)
		case columnSupplyUnit:
			if isInt {
				row.Unit = int(n)
			}
		case columnSupplyMax:
			if isInt {
				row.Max = int(n)
			}
		case columnSupplyLevel:
			if isInt {
				row.Level = int(n)
			}
		}
		return nil
	})
	if pr.opts.Collector != nil {
		pr.opts.Collector.WalkDone(count, err)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		pr.logger.DebugContext(ctx, "no supply table", "error", err)
		return nil, nil
	}

	out := make([]Supply, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b Supply) int { return a.Index - b.Index })
	return out, nil
}

// reasons combines the error state keywords with the rule matches for each
// supply.
func (pr *prober) reasons(ctx context.Context, p *Printer, errorState []string) ([]string, error) {
	keywords := slices.Clone(errorState)

	if pr.opts.Reasons != nil {
		inputs := make([]reasons.Inputs, 0, len(p.Supplies)+1)
		inputs = append(inputs, reasons.Inputs{"status": int(p.Status), "errorState": errorStateList(errorState)})
		for _, s := range p.Supplies {
			inputs = append(inputs, reasons.Inputs{
				"index":       s.Index,
				"class":       s.Class,
				"type":        s.Type,
				"description": s.Description,
				"unit":        s.Unit,
				"max":         s.Max,
				"level":       s.Level,
				"percent":     s.Percent(),
				"status":      int(p.Status),
			})
		}
		matched, err := pr.opts.Reasons.Keywords(ctx, inputs...)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate reasons: %w", err)
		}
		keywords = append(keywords, matched...)
	}

	slices.Sort(keywords)
	return slices.Compact(keywords), nil
}

// errorStateList keeps the errorState input a list even when empty.
func errorStateList(keywords []string) []any {
	out := make([]any, len(keywords))
	for i, k := range keywords {
		out[i] = k
	}
	return out
}
