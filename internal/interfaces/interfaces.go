// Package interfaces defines the core interfaces required for dependency
// injection and testability throughout the Dread Remote Console. The protocol
// engine, the configuration layer, and the terminal window all communicate
// exclusively through the contracts declared here.
package interfaces

import (
	"context"
)

// LuaExecutor is the collaborator-facing surface of the protocol engine. One
// executor owns at most one TCP session to the remote debug server at a time.
type LuaExecutor interface {
	// Connect establishes a session with the remote server: TCP dial,
	// handshake, API probe, and background task startup. It reports success
	// as a boolean and never panics across this boundary; a false return
	// leaves the recorded failure retrievable via LastError.
	Connect(ctx context.Context) bool

	// ConnectOrFail behaves like Connect but surfaces the recorded error to
	// the caller when the connection attempt fails.
	ConnectOrFail(ctx context.Context) error

	// ExecuteCode runs a Lua snippet on the remote server and returns the
	// serialized result. Calls are strictly serialized; concurrent callers
	// queue on the execution lock. A server-reported Lua failure is returned
	// as a *protocol.RemoteExecutionError and leaves the session connected.
	ExecuteCode(ctx context.Context, code string) ([]byte, error)

	// Disconnect tears down the session. It is idempotent and safe to call
	// while disconnected.
	Disconnect()

	// IsConnected reports whether a session currently holds an open socket.
	IsConnected() bool

	// LastError returns the most recently recorded connection or I/O error,
	// or nil if none has occurred since the last successful connect.
	LastError() error

	// SetEndpoint changes the target host. Changing the endpoint while
	// connected forces a disconnect first.
	SetEndpoint(host string)

	// Endpoint returns the current target in host:port form.
	Endpoint() string

	// APIInfo returns the version, buffer size, and bootstrap flag reported
	// by the server during the most recent handshake. The values are zero
	// while disconnected.
	APIInfo() (version int, bufferSize int, bootstrapped bool)
}

// NotificationSink receives asynchronous notifications from the protocol
// engine. The terminal window is one implementation; test harnesses are
// another. Delivery is at-least-once and ordered per source; OnLogLine may be
// invoked once for a batch of coalesced server log lines.
type NotificationSink interface {
	// OnLogLine delivers one decoded server log line or engine status line.
	OnLogLine(text string)

	// OnConnectionStateChanged reports a connection state transition. The
	// engine guarantees a single false notification per lost session, no
	// matter how many background tasks observe the failure.
	OnConnectionStateChanged(connected bool)
}

// Settings represents the persisted console configuration.
type Settings struct {
	// LastHost is the most recently used server host, read at startup and
	// written after each successful connection.
	LastHost string `yaml:"last_host"`

	// Theme names the chroma style used for Lua syntax highlighting.
	Theme string `yaml:"theme"`
}

// ConfigManager handles loading and persisting console settings.
type ConfigManager interface {
	// Load retrieves the persisted settings, creating defaults on first run.
	Load() (*Settings, error)

	// Save persists the settings to the configuration file.
	Save(settings *Settings) error

	// RememberHost records a successfully used host and persists it.
	RememberHost(host string) error

	// ConfigPath returns the path of the backing configuration file.
	ConfigPath() string
}

// ContentRenderer prepares text for display in the history pane.
type ContentRenderer interface {
	// HighlightLua applies syntax highlighting to a Lua snippet. On failure
	// the snippet is returned unhighlighted; rendering never blocks input.
	HighlightLua(code string) string

	// SetTheme switches the highlighting style by name.
	SetTheme(name string) error
}
