package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/geekxflood/printkit/logging"
)

// ErrNoPrinters is returned by Poller.Poll when neither discovery nor the
// known printers produced a result.
var ErrNoPrinters = errors.New("no printers found")

// Poller repeats a scan on an interval, re-probing printers it already knows
// even when they miss a broadcast.
type Poller struct {
	scanner  *Scanner
	targets  []netip.Addr
	interval time.Duration
	onUpdate func([]*Printer)
	logger   logging.Logger

	mu    sync.RWMutex
	known map[netip.Addr]*Printer
}

// NewPoller returns a Poller that scans targets every interval and passes
// each round's printers to onUpdate, which may be nil. onUpdate is also
// called by Refresh, possibly from another goroutine.
func NewPoller(scanner *Scanner, targets []netip.Addr, interval time.Duration, onUpdate func([]*Printer)) *Poller {
	return &Poller{
		scanner:  scanner,
		targets:  slices.Clone(targets),
		interval: interval,
		onUpdate: onUpdate,
		logger:   scanner.logger,
		known:    make(map[netip.Addr]*Printer),
	}
}

// Run polls immediately and then every interval until ctx is done. A failed
// round is logged and the next one proceeds as scheduled.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", p.interval)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		_, err := p.Poll(ctx)
		switch {
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, ErrNoPrinters):
			p.logger.DebugContext(ctx, "no printers answered")
		default:
			p.logger.WarnContext(ctx, "poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one round: discovery on the targets plus every known printer.
// Printers that stop answering are forgotten.
func (p *Poller) Poll(ctx context.Context) ([]*Printer, error) {
	ctx, cancel := p.scanner.withRunTime(ctx)
	defer cancel()

	addrs, err := p.scanner.Discover(ctx, p.targets)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	for addr := range p.known {
		if !slices.Contains(addrs, addr) {
			addrs = append(addrs, addr)
		}
	}
	p.mu.RUnlock()

	printers, err := p.scanner.ProbeAll(ctx, addrs)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.known = make(map[netip.Addr]*Printer, len(printers))
	for _, printer := range printers {
		p.known[printer.Addr] = printer
	}
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(printers)
	}
	if len(printers) == 0 {
		return nil, ErrNoPrinters
	}
	return printers, nil
}

// Printers returns the printers found by the last round, sorted by address.
func (p *Poller) Printers() []*Printer {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Printer, 0, len(p.known))
	for _, printer := range p.known {
		out = append(out, printer)
	}
	slices.SortFunc(out, func(a, b *Printer) int { return a.Addr.Compare(b.Addr) })
	return out
}

// Refresh re-probes the printer at addr outside the schedule, as after a
// trap. A printer that fails is forgotten until the next round discovers it
// again. onUpdate receives every known printer.
func (p *Poller) Refresh(ctx context.Context, addr netip.Addr) (*Printer, error) {
	ctx, cancel := p.scanner.withRunTime(ctx)
	defer cancel()

	printer, err := p.scanner.Probe(ctx, addr)

	collector := p.scanner.opts.Collector
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.mu.Lock()
		delete(p.known, addr)
		p.mu.Unlock()
		if collector != nil {
			collector.PrinterDown(addr)
		}
		return nil, err
	}

	p.mu.Lock()
	p.known[addr] = printer
	p.mu.Unlock()

	printers := p.Printers()
	if collector != nil {
		collector.ObservePrinters(printers)
	}
	if p.onUpdate != nil {
		p.onUpdate(printers)
	}
	return printer, nil
}
