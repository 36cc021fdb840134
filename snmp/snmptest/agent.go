// Package snmptest provides a UDP SNMPv1 agent for exercising the snmp
// client. Requests are decoded and replies encoded with gosnmp, so the
// client is always tested against an independent BER implementation.
//
// An Agent delegates every request to a Responder: a Script replays a
// fixed queue of replies, a Tree answers GET and GET-NEXT from an ordered
// table like a real agent.
package snmptest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/geekxflood/printkit/logging"
)

// readTimeout bounds each read so the serve loop notices cancellation.
const readTimeout = 100 * time.Millisecond

// Request is one decoded request as seen by the agent.
type Request struct {
	Type      gosnmp.PDUType
	Community string
	RequestID uint32
	// Name is the first binding's OID without a leading dot.
	Name string
	From netip.AddrPort
}

// Responder decides the reply to a request. Returning false sends nothing.
type Responder interface {
	Respond(req Request) (Reply, bool)
}

// Agent is a UDP agent bound to a loopback port by default.
type Agent struct {
	listen    string
	responder Responder
	logger    logging.Logger

	conn   *net.UDPConn
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	requests []Request
}

// NewAgent returns an agent that will listen on addr. An empty addr means
// 127.0.0.1 on a free port.
func NewAgent(addr string, responder Responder, logger logging.Logger) *Agent {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	return &Agent{
		listen:    addr,
		responder: responder,
		logger:    logging.OrDiscard(logger),
	}
}

// Start binds the socket and serves requests until Stop is called or ctx is
// done.
func (a *Agent) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", a.listen)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", a.listen, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address %s: %w", a.listen, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a.conn = conn
	a.cancel = cancel

	a.wg.Add(1)
	go a.serve(ctx)

	a.logger.Debug("agent started", "addr", a.Addr().String())
	return nil
}

// Stop closes the socket and waits for the serve loop to exit.
func (a *Agent) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	_ = a.conn.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
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
func (a *Agent) Addr() netip.AddrPort {
	if a.conn == nil {
		return netip.AddrPort{}
	}
	if addr, ok := a.conn.LocalAddr().(*net.UDPAddr); ok {
		ap := addr.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

// Requests returns a copy of every request received so far.
func (a *Agent) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.requests))
	copy(out, a.requests)
	return out
}

func (a *Agent) serve(ctx context.Context) {
	defer a.wg.Done()

	buf := make([]byte, 65535)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := a.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		n, from, err := a.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			a.logger.Warn("agent read failed", "error", err)
			continue
		}

		if err := a.handle(buf[:n], from); err != nil {
			a.logger.Debug("request not answered", "from", from.String(), "error", err)
		}
	}
}

func (a *Agent) handle(packet []byte, from netip.AddrPort) error {
	decoded, err := gosnmp.Default.SnmpDecodePacket(packet)
	if err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	if len(decoded.Variables) == 0 {
		return errors.New("request has no variable bindings")
	}

	req := Request{
		Type:      decoded.PDUType,
		Community: decoded.Community,
		RequestID: decoded.RequestID,
		Name:      strings.TrimPrefix(decoded.Variables[0].Name, "."),
		From:      from,
	}
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	reply, ok := a.responder.Respond(req)
	if !ok || reply.Drop {
		return nil
	}

	out, err := reply.marshal(req)
	if err != nil {
		return err
	}
	if _, err := a.conn.WriteToUDPAddrPort(out, from); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}
