package snmp

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// WalkFunc is called once for every binding a walk returns, in order. A
// non-nil error stops the walk and is returned by Walk.
type WalkFunc func(p *Packet) error

// Walk retrieves the subtree under prefix from target with successive
// GetNextRequests and returns the number of bindings delivered to fn.
//
// The walk ends without error when the agent answers with a name outside
// prefix or echoes the name it was asked for. A timeout, an undecodable
// reply or a non-zero error-status also ends it: if at least one binding
// was delivered the count is returned with a nil error, otherwise the
// failure is returned. Request ids start at 1 and are not compared with the
// ids in replies.
func (c *Conn) Walk(ctx context.Context, target netip.Addr, community string, prefix OID, timeout time.Duration, fn WalkFunc) (int, error) {
	current := prefix.Copy(0)
	var requestID uint32
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		requestID++
		if err := c.Send(target, NewGetNextRequest(community, requestID, current)); err != nil {
			return count, fmt.Errorf("failed to send request for %s: %w", current, err)
		}

		resp, err := c.Receive(timeout)
		if err != nil {
			return c.endWalk(ctx, target, prefix, count, err)
		}

		if !resp.ObjectName.HasPrefix(prefix) {
			c.logger.DebugContext(ctx, "walk left subtree", "printer", target.String(), "oid", resp.ObjectName.String(), "count", count)
			return count, nil
		}
		if resp.ErrorStatus != 0 {
			return c.endWalk(ctx, target, prefix, count, &ProtocolError{Status: resp.ErrorStatus, Index: resp.ErrorIndex})
		}
		if resp.ObjectName.Equal(current) {
			c.logger.DebugContext(ctx, "agent did not advance", "printer", target.String(), "oid", current.String(), "count", count)
			return count, nil
		}

		count++
		if fn != nil {
			if err := fn(resp); err != nil {
				return count, err
			}
		}
		current = resp.ObjectName
	}
}

// endWalk applies the partial result rule: a walk that delivered anything
// is a success.
func (c *Conn) endWalk(ctx context.Context, target netip.Addr, prefix OID, count int, err error) (int, error) {
	if count > 0 {
		c.logger.DebugContext(ctx, "walk ended early", "printer", target.String(), "oid", prefix.String(), "count", count, "error", err)
		return count, nil
	}
	return 0, fmt.Errorf("walk %s on %s: %w", prefix, target, err)
}

// Get sends one GetRequest for oid and waits for the reply carrying the same
// request id. Replies to earlier requests are skipped. A non-zero
// error-status is returned as a *ProtocolError together with the packet.
func (c *Conn) Get(ctx context.Context, target netip.Addr, community string, oid OID, timeout time.Duration) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := c.nextRequestID()
	if err := c.Send(target, NewGetRequest(community, id, oid)); err != nil {
		return nil, fmt.Errorf("failed to send request for %s: %w", oid, err)
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		resp, err := c.Receive(remaining(deadline, timeout))
		if err != nil {
			return resp, fmt.Errorf("get %s on %s: %w", oid, target, err)
		}
		if resp.RequestID != id {
			c.logger.DebugContext(ctx, "skipping stale response", "printer", target.String(), "request_id", resp.RequestID, "want", id)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		if resp.ErrorStatus != 0 {
			return resp, &ProtocolError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
		}
		return resp, nil
	}
}

// Broadcast sends one GetRequest for oid to a broadcast address and
// collects every matching reply until timeout elapses. Undecodable replies
// and replies with a non-zero error-status are dropped.
func (c *Conn) Broadcast(ctx context.Context, dst netip.Addr, community string, oid OID, timeout time.Duration) ([]*Packet, error) {
	if timeout <= 0 {
		return nil, errors.New("broadcast requires a positive timeout")
	}

	id := c.nextRequestID()
	if err := c.Send(dst, NewGetRequest(community, id, oid)); err != nil {
		return nil, fmt.Errorf("failed to send broadcast to %s: %w", dst, err)
	}

	deadline := time.Now().Add(timeout)
	var replies []*Packet
	for {
		if err := ctx.Err(); err != nil {
			return replies, err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return replies, nil
		}

		resp, err := c.Receive(wait)
		switch {
		case errors.Is(err, ErrNoResponse):
			return replies, nil
		case err != nil:
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				continue
			}
			return replies, fmt.Errorf("broadcast to %s: %w", dst, err)
		}

		if resp.RequestID != id || resp.ErrorStatus != 0 {
			continue
		}
		replies = append(replies, resp)
	}
}

func (c *Conn) nextRequestID() uint32 {
	c.requestID++
	if c.requestID == 0 {
		c.requestID = 1
	}
	return c.requestID
}

// remaining converts an absolute deadline back to a Receive timeout. A
// negative original timeout keeps blocking.
func remaining(deadline time.Time, timeout time.Duration) time.Duration {
	if timeout < 0 {
		return -1
	}
	left := time.Until(deadline)
	if left < 0 {
		return 0
	}
	return left
}
