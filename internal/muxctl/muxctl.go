// Package muxctl implements the synchronous request/reply client used to
// command a running multiplexer over its local IPC control socket.
package muxctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ReplyStatus classifies the outcome of a Send call.
type ReplyStatus int

const (
	// StatusOk means the command was accepted and Body carries the
	// concatenated reply frames.
	StatusOk ReplyStatus = iota
	// StatusNotReady means the preceding ping did not reply "ok".
	StatusNotReady
	// StatusDisconnected means the socket timed out or errored; the
	// connection will be re-established on the next call.
	StatusDisconnected
)

func (s ReplyStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusNotReady:
		return "not-ready"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Reply is the result of sending a command to the multiplexer.
type Reply struct {
	Status ReplyStatus
	Body   string
}

const endOfMessageMarker = "\xff"

// Client is a single persistent connection to the multiplexer's control
// socket, serialized through an internal mutex so at most one request is
// outstanding at a time.
type Client struct {
	network string
	address string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	breaker *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default 5s per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger attaches a structured logger; nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client dialing network/address lazily on first use.
// network/address follow net.Dial conventions (e.g. "unix", "/run/odr/mux.sock").
func New(network, address string, opts ...Option) *Client {
	c := &Client{
		network: network,
		address: address,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "muxctl",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return c
}

func (c *Client) log(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// Send issues a command as the tuple of parts (e.g. "set", entity, field,
// value), preceded by the mandatory ping gate, and returns the combined
// reply. Only one Send executes at a time per Client.
func (c *Client) Send(ctx context.Context, parts ...string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.sendLocked(ctx, parts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Reply{Status: StatusDisconnected}, fmt.Errorf("muxctl: breaker open: %w", err)
		}
		return Reply{Status: StatusDisconnected}, err
	}
	return result.(Reply), nil
}

func (c *Client) sendLocked(ctx context.Context, parts []string) (Reply, error) {
	conn, err := c.connection()
	if err != nil {
		return Reply{Status: StatusDisconnected}, err
	}

	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > c.timeout {
		deadline = time.Now().Add(c.timeout)
	}
	_ = conn.SetDeadline(deadline)

	pingReply, err := c.roundTrip(conn, []string{"ping"})
	if err != nil {
		c.closeLocked()
		return Reply{Status: StatusDisconnected}, err
	}
	if pingReply != "ok" {
		return Reply{Status: StatusNotReady}, nil
	}

	body, err := c.roundTrip(conn, parts)
	if err != nil {
		c.closeLocked()
		return Reply{Status: StatusDisconnected}, err
	}
	return Reply{Status: StatusOk, Body: body}, nil
}

// roundTrip writes parts as N frames (only the last carries the
// end-of-message marker) and reads back reply frames until one carries
// the marker, returning them concatenated.
func (c *Client) roundTrip(conn net.Conn, parts []string) (string, error) {
	w := bufio.NewWriter(conn)
	for i, p := range parts {
		frame := p
		if i == len(parts)-1 {
			frame += endOfMessageMarker
		}
		if _, err := w.WriteString(frame + "\n"); err != nil {
			return "", fmt.Errorf("muxctl: write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("muxctl: flush: %w", err)
	}

	var sb strings.Builder
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("muxctl: read: %w", err)
		}
		line = strings.TrimRight(line, "\n")
		done := strings.HasSuffix(line, endOfMessageMarker)
		line = strings.TrimSuffix(line, endOfMessageMarker)
		sb.WriteString(line)
		if done {
			break
		}
	}
	return sb.String(), nil
}

func (c *Client) connection() (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := net.DialTimeout(c.network, c.address, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("muxctl: dial %s %s: %w", c.network, c.address, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
