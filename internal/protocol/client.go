// Session engine for the Dread debug protocol. This file provides the
// concrete implementation of the LuaExecutor interface: connection lifecycle,
// handshake and API probe, and single-flight remote code execution with
// request-number correlation.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dread-remote/console/internal/interfaces"
	"github.com/dread-remote/console/internal/logging"
)

// DefaultPort is the TCP port the remote debug server listens on.
const DefaultPort = 6969

const (
	dialTimeout      = 30 * time.Second
	handshakeTimeout = 30 * time.Second
	responseTimeout  = 15 * time.Second
	writeTimeout     = 30 * time.Second
)

// apiProbe is sent immediately after the handshake. The server formats its
// version, buffer size, and bootstrap flag as a comma-separated ASCII string.
const apiProbe = `return string.format('%d,%d,%s', RL.Version, RL.BufferSize, tostring(RL.Bootstrap))`

// Client implements the LuaExecutor interface over one TCP session. A fresh
// session struct is created on every successful connect and discarded on
// disconnect; the socket handle is owned exclusively by the session and
// closed exactly once.
type Client struct {
	connMu sync.Mutex // serializes connection establishment
	execMu sync.Mutex // serializes code execution (single-flight)

	mu      sync.Mutex // guards host, port, sess, lastErr
	host    string
	port    int
	sess    *session
	lastErr error

	sink    interfaces.NotificationSink
	logger  *logging.Logger
	pending pendingQueue
}

// session holds the per-connection state. The request number cycles mod 256
// and is mutated only while the connection or execution lock is held; the
// background tasks never touch it.
type session struct {
	conn   net.Conn
	reader *bufio.Reader

	requestNumber byte
	apiVersion    int
	bufferSize    int
	bootstrapped  bool

	done      chan struct{}
	closeOnce sync.Once

	wmu sync.Mutex // keeps packet writes contiguous on the wire

	waiterMu sync.Mutex
	waiter   chan execResult // non-nil while an exec call awaits its response
}

// execResult carries a decoded exec response, or the reader failure that
// terminated the session, to the in-flight ExecuteCode call.
type execResult struct {
	resp ExecResponse
	err  error
}

// NewClient creates a protocol client targeting the given host on the default
// port. The sink receives log lines and connection state transitions.
func NewClient(host string, sink interfaces.NotificationSink) (*Client, error) {
	if sink == nil {
		return nil, fmt.Errorf("notification sink cannot be nil")
	}
	host, port := splitEndpoint(host)
	return &Client{
		host:   host,
		port:   port,
		sink:   sink,
		logger: logging.GetGlobalLogger().WithComponent("executor"),
	}, nil
}

// splitEndpoint splits an optional ":port" suffix off a host, falling back to
// the default port.
func splitEndpoint(endpoint string) (string, int) {
	if host, portStr, err := net.SplitHostPort(endpoint); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			return host, port
		}
	}
	return endpoint, DefaultPort
}

// Endpoint returns the current target address in host:port form.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// SetEndpoint changes the target host, disconnecting first when a session is
// open.
func (c *Client) SetEndpoint(host string) {
	c.Disconnect()
	host, port := splitEndpoint(host)
	c.mu.Lock()
	c.host = host
	c.port = port
	c.mu.Unlock()
}

// IsConnected reports whether a session currently holds an open socket.
func (c *Client) IsConnected() bool {
	return c.session() != nil
}

// LastError returns the most recently recorded failure, or nil.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// APIInfo returns the server-reported version, buffer size, and bootstrap
// flag from the most recent handshake.
func (c *Client) APIInfo() (int, int, bool) {
	sess := c.session()
	if sess == nil {
		return 0, 0, false
	}
	return sess.apiVersion, sess.bufferSize, sess.bootstrapped
}

func (c *Client) session() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Client) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Connect establishes a session under the connection lock. It is a no-op
// returning true when already connected. On any dial, timeout, or decode
// failure the partially built socket is discarded, the error is recorded, and
// false is returned; nothing panics across this boundary.
func (c *Client) Connect(ctx context.Context) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.IsConnected() {
		return true
	}

	c.mu.Lock()
	host, port := c.host, c.port
	c.mu.Unlock()
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	start := time.Now()
	c.setLastErr(nil)
	c.logger.LogConnectionAttempt(addr)

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		cerr := &ConnectionError{Addr: addr, Err: err}
		c.logger.LogConnectionFailure(addr, err, time.Since(start))
		c.setLastErr(cerr)
		return false
	}

	sess := &session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		done:   make(chan struct{}),
	}

	if err := c.handshake(sess); err != nil {
		conn.Close()
		c.logger.LogConnectionFailure(addr, err, time.Since(start))
		c.setLastErr(err)
		return false
	}

	// The endpoint may have been retargeted while the dial or handshake was
	// blocked; a session bound to the old address is discarded, not published.
	c.mu.Lock()
	if c.host != host || c.port != port {
		c.mu.Unlock()
		conn.Close()
		cerr := &ConnectionError{Addr: addr, Err: errors.New("endpoint changed during connect")}
		c.logger.LogConnectionFailure(addr, cerr.Err, time.Since(start))
		c.setLastErr(cerr)
		return false
	}
	c.sess = sess
	c.mu.Unlock()

	go c.keepAliveLoop(sess)
	go c.readLoop(sess)

	c.logger.LogConnectionSuccess(addr, sess.apiVersion, time.Since(start))
	c.sink.OnConnectionStateChanged(true)
	return true
}

// ConnectOrFail calls Connect and surfaces the recorded error on failure,
// notifying the sink of the unchanged, disconnected state.
func (c *Client) ConnectOrFail(ctx context.Context) error {
	if c.Connect(ctx) {
		return nil
	}
	err := c.LastError()
	if err == nil {
		err = &ConnectionError{Addr: c.Endpoint(), Err: errors.New("connection attempt failed")}
	}
	c.sink.OnConnectionStateChanged(false)
	return err
}

// handshake declares log-notification interest, validates the server's ack
// against the request counter, probes the server for its API details, and
// stores them in the session. The background reader is not running yet, so
// all reads happen directly on the caller's goroutine.
func (c *Client) handshake(sess *session) error {
	if err := sess.writePacket(EncodeHandshake(InterestLogging), handshakeTimeout); err != nil {
		return wrapIOError("handshake send", err)
	}

	if err := c.awaitPacket(sess, PacketHandshake, "handshake ack"); err != nil {
		return err
	}
	ack, err := DecodeHandshakeAck(sess.reader)
	if err != nil {
		return wrapIOError("handshake ack", err)
	}
	if ack.RequestNumber != sess.requestNumber {
		return &FramingError{Reason: fmt.Sprintf("expected request number %d in handshake ack, got %d",
			sess.requestNumber, ack.RequestNumber)}
	}
	sess.requestNumber++

	if err := sess.writePacket(EncodeRemoteExec([]byte(apiProbe)), handshakeTimeout); err != nil {
		return wrapIOError("api probe send", err)
	}
	if err := c.awaitPacket(sess, PacketRemoteExec, "api probe response"); err != nil {
		return err
	}
	resp, err := DecodeExecResponse(sess.reader)
	if err != nil {
		return wrapIOError("api probe response", err)
	}
	if resp.RequestNumber != sess.requestNumber {
		return &FramingError{Reason: fmt.Sprintf("expected request number %d in api probe response, got %d",
			sess.requestNumber, resp.RequestNumber)}
	}
	sess.requestNumber++
	if !resp.Success {
		return &RemoteExecutionError{Message: string(resp.Payload)}
	}

	version, bufferSize, bootstrapped, err := parseAPIInfo(resp.Payload)
	if err != nil {
		return err
	}
	sess.apiVersion = version
	sess.bufferSize = bufferSize
	sess.bootstrapped = bootstrapped

	// Hand a deadline-free socket to the background reader.
	return sess.conn.SetReadDeadline(time.Time{})
}

// awaitPacket reads type tags until one matches want, queueing any log
// messages the server pushes in the meantime. Only used during the handshake.
func (c *Client) awaitPacket(sess *session, want PacketType, op string) error {
	for {
		if err := sess.conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
			return wrapIOError(op, err)
		}
		tag, err := ReadPacketType(sess.reader)
		if err != nil {
			return wrapIOError(op, err)
		}
		switch tag {
		case want:
			return nil
		case PacketLogMessage:
			msg, err := DecodeLogMessage(sess.reader)
			if err != nil {
				return wrapIOError(op, err)
			}
			c.emitLogLine("Log: " + msg.Text)
		default:
			return &ProtocolDesyncError{Tag: tag}
		}
	}
}

// parseAPIInfo splits the probe response "<version>,<bufferSize>,<bootstrap>".
func parseAPIInfo(payload []byte) (int, int, bool, error) {
	parts := strings.SplitN(string(payload), ",", 3)
	if len(parts) != 3 {
		return 0, 0, false, &FramingError{Reason: fmt.Sprintf("api probe reply %q is not version,bufferSize,bootstrap", payload)}
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false, &FramingError{Reason: "api version is not an integer", Err: err}
	}
	bufferSize, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false, &FramingError{Reason: "buffer size is not an integer", Err: err}
	}
	bootstrapped, err := strconv.ParseBool(parts[2])
	if err != nil {
		return 0, 0, false, &FramingError{Reason: "bootstrap flag is not a boolean", Err: err}
	}
	return version, bufferSize, bootstrapped, nil
}

// ExecuteCode sends a Lua snippet under the execution lock and waits for the
// correlated response. A server-reported failure is returned as a
// RemoteExecutionError and leaves the session connected; any I/O, timeout, or
// framing failure disconnects the session before being surfaced so it never
// appears connected while actually broken.
func (c *Client) ExecuteCode(ctx context.Context, code string) ([]byte, error) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	sess := c.session()
	if sess == nil {
		return nil, ErrNotConnected
	}

	c.logger.Debug("Running lua code", "bytes", len(code))

	waiter := make(chan execResult, 1)
	sess.setWaiter(waiter)
	defer sess.clearWaiter()

	expected := sess.requestNumber
	if err := sess.writePacket(EncodeRemoteExec([]byte(code)), writeTimeout); err != nil {
		werr := wrapIOError("exec send", err)
		c.logger.Warn("Unable to send lua code", "addr", c.Endpoint(), "bytes", len(code), "error", err)
		c.setLastErr(werr)
		c.Disconnect()
		return nil, werr
	}

	var res execResult
	select {
	case res = <-waiter:
	case <-ctx.Done():
		c.setLastErr(ctx.Err())
		c.Disconnect()
		return nil, ctx.Err()
	case <-time.After(responseTimeout):
		terr := &TimeoutError{Op: "exec response", Err: os.ErrDeadlineExceeded}
		c.setLastErr(terr)
		c.Disconnect()
		return nil, terr
	}
	if res.err != nil {
		// The reader already recorded the failure and tore the session down.
		return nil, res.err
	}

	sess.requestNumber++
	if res.resp.RequestNumber != expected {
		ferr := &FramingError{Reason: fmt.Sprintf("expected request number %d in exec response, got %d",
			expected, res.resp.RequestNumber)}
		c.setLastErr(ferr)
		c.Disconnect()
		return nil, ferr
	}
	if !res.resp.Success {
		return nil, &RemoteExecutionError{Message: string(res.resp.Payload)}
	}
	return res.resp.Payload, nil
}

// Disconnect tears down the session. It is idempotent; the sink is notified
// only when an open socket is actually released, so a lost connection
// produces exactly one state-change notification regardless of how many
// background tasks observe the failure.
func (c *Client) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}
	sess.close()
	c.logger.Info("Disconnected from remote server", "addr", c.Endpoint())
	c.sink.OnConnectionStateChanged(false)
}

// emitLogLine queues a log line and arms a coalescing flush when the queue
// transitions from empty to non-empty.
func (c *Client) emitLogLine(line string) {
	if c.pending.Append(line) {
		time.AfterFunc(flushDelay, c.flushPending)
	}
}

// flushPending drains the queue atomically and forwards every line in order.
func (c *Client) flushPending() {
	for _, line := range c.pending.Drain() {
		c.sink.OnLogLine(line)
	}
}

// close shuts the session down exactly once: the done channel stops the
// keep-alive task and closing the socket unblocks any pending read or write.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// closed reports whether the session has been deliberately torn down.
func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// writePacket writes one encoded packet as a contiguous unit under a bounded
// write deadline, so concurrent keep-alives never interleave with requests.
func (s *session) writePacket(pkt []byte, timeout time.Duration) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(pkt)
	return err
}

func (s *session) setWaiter(ch chan execResult) {
	s.waiterMu.Lock()
	s.waiter = ch
	s.waiterMu.Unlock()
}

func (s *session) clearWaiter() {
	s.waiterMu.Lock()
	s.waiter = nil
	s.waiterMu.Unlock()
}

// deliver hands a result to the registered waiter, reporting false when no
// exec call is in flight.
func (s *session) deliver(res execResult) bool {
	s.waiterMu.Lock()
	defer s.waiterMu.Unlock()
	if s.waiter == nil {
		return false
	}
	s.waiter <- res
	s.waiter = nil
	return true
}
