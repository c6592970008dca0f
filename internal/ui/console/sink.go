package console

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Sink adapts the protocol engine's notification callbacks to Bubble Tea
// messages. The engine calls it from its background goroutines; Program.Send
// is safe for that. Notifications arriving before Attach are dropped, which
// only happens during startup before the window exists.
type Sink struct {
	program atomic.Pointer[tea.Program]
}

// NewSink creates an unattached sink.
func NewSink() *Sink {
	return &Sink{}
}

// Attach binds the sink to a running Bubble Tea program.
func (s *Sink) Attach(program *tea.Program) {
	s.program.Store(program)
}

// OnLogLine implements the NotificationSink interface.
func (s *Sink) OnLogLine(text string) {
	if program := s.program.Load(); program != nil {
		program.Send(logLineMsg{text: text})
	}
}

// OnConnectionStateChanged implements the NotificationSink interface.
func (s *Sink) OnConnectionStateChanged(connected bool) {
	if program := s.program.Load(); program != nil {
		program.Send(connStateMsg{connected: connected})
	}
}
