// Package mockserver implements an in-process stand-in for the Lua debug
// server embedded in the game. It speaks the exact wire protocol and executes
// submitted snippets against a real gopher-lua state exposing the RL table,
// so the console can be exercised end to end without a running game.
package mockserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dread-remote/console/internal/logging"
	"github.com/dread-remote/console/internal/protocol"
)

// Config describes the API details the server reports during the handshake
// probe, surfaced to scripts as RL.Version, RL.BufferSize, and RL.Bootstrap.
type Config struct {
	Version    int
	BufferSize int
	Bootstrap  bool
}

// DefaultConfig mirrors the values a bootstrapped game reports.
func DefaultConfig() Config {
	return Config{Version: 3, BufferSize: 4096, Bootstrap: true}
}

// Server accepts debug protocol connections and runs one Lua session per
// connection.
type Server struct {
	cfg    Config
	logger *logging.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	sessions map[*connSession]struct{}
	closed   bool
}

// New creates a server with the given API configuration.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logging.GetGlobalLogger().WithComponent("mockserver"),
		sessions: make(map[*connSession]struct{}),
	}
}

// Start binds the listener and begins accepting connections. Pass an address
// with port 0 to let the OS choose a free port; Addr reports the bound one.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info("Mock server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting connections, drops every open session, and waits for
// all session goroutines to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*connSession, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	err := s.listener.Close()
	for _, sess := range sessions {
		sess.conn.Close()
	}
	s.wg.Wait()
	return err
}

// BroadcastLog pushes a log message packet to every connected client, the
// same way the game pushes engine log lines.
func (s *Server) BroadcastLog(text string) {
	s.mu.Lock()
	sessions := make([]*connSession, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	pkt := protocol.EncodeLogMessage(text)
	for _, sess := range sessions {
		if err := sess.write(pkt); err != nil {
			s.logger.Warn("Failed to push log message", "error", err)
		}
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := newConnSession(s, conn)
	defer sess.close()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()

	if err := sess.run(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		sess.logger.Warn("Session ended with error", "error", err)
	}
}

// connSession is the per-connection protocol state: one Lua state, one
// request-number counter, and a write mutex keeping pushed log packets from
// interleaving with responses.
type connSession struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	logger *logging.Logger

	wmu sync.Mutex

	requestNumber byte

	// The LState is not goroutine-safe; it is only ever touched by the
	// session's own run goroutine.
	state *lua.LState
}

func newConnSession(s *Server, conn net.Conn) *connSession {
	sess := &connSession{
		server: s,
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: s.logger.WithField("remote", conn.RemoteAddr().String()),
		state:  lua.NewState(),
	}
	sess.installAPI()
	return sess
}

func (cs *connSession) close() {
	cs.state.Close()
}

// installAPI builds the RL table the game exposes to debug scripts.
func (cs *connSession) installAPI() {
	L := cs.state
	rl := L.NewTable()
	L.SetField(rl, "Version", lua.LNumber(cs.server.cfg.Version))
	L.SetField(rl, "BufferSize", lua.LNumber(cs.server.cfg.BufferSize))
	L.SetField(rl, "Bootstrap", lua.LBool(cs.server.cfg.Bootstrap))
	L.SetField(rl, "Log", L.NewFunction(func(L *lua.LState) int {
		text := L.CheckString(1)
		if err := cs.write(protocol.EncodeLogMessage(text)); err != nil {
			cs.logger.Warn("RL.Log write failed", "error", err)
		}
		return 0
	}))
	L.SetGlobal("RL", rl)
}

// run drives one session: handshake first, then exec requests and keep-alives
// until the client goes away.
func (cs *connSession) run() error {
	tag, err := protocol.ReadPacketType(cs.reader)
	if err != nil {
		return err
	}
	if tag != protocol.PacketHandshake {
		return fmt.Errorf("expected handshake, got %s", tag)
	}
	interest, err := protocol.DecodeHandshake(cs.reader)
	if err != nil {
		return err
	}
	cs.logger.Info("Client connected", "interest", interest)

	if err := cs.write(protocol.EncodeHandshakeAck(cs.requestNumber)); err != nil {
		return err
	}
	cs.requestNumber++

	for {
		tag, err := protocol.ReadPacketType(cs.reader)
		if err != nil {
			return err
		}
		switch tag {
		case protocol.PacketKeepAlive:
			// Nothing to do; receiving it is the point.

		case protocol.PacketRemoteExec:
			code, err := protocol.DecodeRemoteExec(cs.reader)
			if err != nil {
				return err
			}
			success, payload := cs.eval(string(code))
			pkt, err := protocol.EncodeExecResponse(cs.requestNumber, success, payload)
			if err != nil {
				return err
			}
			if err := cs.write(pkt); err != nil {
				return err
			}
			cs.requestNumber++

		default:
			return fmt.Errorf("unexpected packet %s from client", tag)
		}
	}
}

// eval compiles and runs a snippet on the session's Lua state, returning the
// first returned value rendered as text, or false plus the Lua error message.
func (cs *connSession) eval(code string) (bool, []byte) {
	L := cs.state
	base := L.GetTop()
	defer L.SetTop(base)

	fn, err := L.LoadString(code)
	if err != nil {
		return false, []byte(err.Error())
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return false, []byte(err.Error())
	}

	if L.GetTop() == base {
		return true, nil
	}
	return true, []byte(L.Get(base + 1).String())
}

func (cs *connSession) write(pkt []byte) error {
	cs.wmu.Lock()
	defer cs.wmu.Unlock()
	_, err := cs.conn.Write(pkt)
	return err
}
