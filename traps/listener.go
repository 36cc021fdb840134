package traps

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/mibnames"
)

// Defaults applied by NewListener.
const (
	DefaultListen     = ":162"
	DefaultWorkers    = 4
	DefaultQueueSize  = 64
	DefaultBufferSize = 65535
)

// readTimeout bounds each read so the listen loop notices cancellation.
const readTimeout = 250 * time.Millisecond

// Trap results.
const (
	resultAccepted  = "accepted"
	resultRejected  = "rejected"
	resultMalformed = "malformed"
	resultDropped   = "dropped"
)

// Handler receives every accepted trap. Handlers run on the worker
// goroutines, so a slow handler delays the traps queued behind it.
type Handler func(ctx context.Context, t *Trap)

// Options configures a Listener.
type Options struct {
	// Listen is the UDP address to bind.
	Listen string

	// Community is the community a trap must carry. Empty accepts any.
	Community string

	// Workers is the number of goroutines decoding traps.
	Workers int

	// QueueSize bounds the datagrams waiting for a worker. Datagrams that
	// arrive while the queue is full are dropped.
	QueueSize int

	BufferSize int

	// Names translates variable names. Nil leaves them numeric.
	Names mibnames.Translator

	Handler Handler

	// Registerer receives the trap counter. Nil means no metrics.
	Registerer prometheus.Registerer

	Logger logging.Logger
}

// job is one datagram waiting for a worker. buf is returned to the pool
// once the worker is done with it.
type job struct {
	buf    *[]byte
	n      int
	source netip.AddrPort
}

// Listener receives traps on a UDP socket.
type Listener struct {
	opts     Options
	logger   logging.Logger
	received *prometheus.CounterVec
	buffers  sync.Pool

	conn   *net.UDPConn
	jobs   chan job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener returns a Listener with defaults filled in. The trap counter
// is registered against opts.Registerer here, so a Registerer can back only
// one Listener.
func NewListener(opts Options) *Listener {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	l := &Listener{
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printkit",
			Subsystem: "traps",
			Name:      "received_total",
			Help:      "Trap datagrams received, by result.",
		}, []string{"result"}),
	}
	l.buffers.New = func() any {
		buf := make([]byte, opts.BufferSize)
		return &buf
	}
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(l.received)
	}
	return l
}

// Start binds the socket and starts the workers. They run until Stop is
// called or ctx is done.
func (l *Listener) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", l.opts.Listen, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address %s: %w", l.opts.Listen, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l.conn = conn
	l.cancel = cancel
	l.jobs = make(chan job, l.opts.QueueSize)

	var workers sync.WaitGroup
	for range l.opts.Workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			l.work(ctx)
		}()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.listen(ctx)
		close(l.jobs)
		workers.Wait()
	}()

	l.logger.Info("trap listener started", "addr", l.Addr().String(), "workers", l.opts.Workers)
	return nil
}

// Stop closes the socket and waits for queued traps to be handled.
func (l *Listener) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	_ = l.conn.Close()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound address, or the zero value before Start.
func (l *Listener) Addr() netip.AddrPort {
	if l.conn == nil {
		return netip.AddrPort{}
	}
	if addr, ok := l.conn.LocalAddr().(*net.UDPAddr); ok {
		ap := addr.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

func (l *Listener) listen(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		buf := l.buffers.Get().(*[]byte)
		n, source, err := l.conn.ReadFromUDPAddrPort(*buf)
		if err != nil {
			l.buffers.Put(buf)
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			l.logger.Warn("trap read failed", "error", err)
			continue
		}

		source = netip.AddrPortFrom(source.Addr().Unmap(), source.Port())
		select {
		case l.jobs <- job{buf: buf, n: n, source: source}:
		default:
			l.buffers.Put(buf)
			l.received.WithLabelValues(resultDropped).Inc()
			l.logger.Warn("trap queue full, dropping datagram", "from", source.String())
		}
	}
}

func (l *Listener) work(ctx context.Context) {
	for j := range l.jobs {
		t, err := Decode((*j.buf)[:j.n], j.source)
		l.buffers.Put(j.buf)
		if err != nil {
			l.received.WithLabelValues(resultMalformed).Inc()
			l.logger.Debug("trap not decoded", "from", j.source.String(), "error", err)
			continue
		}
		if l.opts.Community != "" && t.Community != l.opts.Community {
			l.received.WithLabelValues(resultRejected).Inc()
			l.logger.Debug("trap community rejected", "from", j.source.String())
			continue
		}

		l.received.WithLabelValues(resultAccepted).Inc()
		t.Translate(l.opts.Names)
		ctx := logging.WithPrinter(ctx, t.Printer().String())
		l.logger.DebugContext(ctx, "trap received", "trap", t.TrapOID.String(), "variables", len(t.Variables))
		if l.opts.Handler != nil {
			l.opts.Handler(ctx, t)
		}
	}
}
