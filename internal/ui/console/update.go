// User input processing and state management for the console window. This
// file contains the Bubble Tea update function handling code submission,
// connection toggling, host editing, and the messages pumped in from the
// protocol engine's notification sink.
package console

import (
	"context"
	"net"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Messages delivered into the Bubble Tea event loop.

// logLineMsg carries one log line from the notification sink.
type logLineMsg struct {
	text string
}

// connStateMsg carries a connection state transition from the sink.
type connStateMsg struct {
	connected bool
}

// connectFinishedMsg reports the outcome of an asynchronous connect.
type connectFinishedMsg struct {
	err error
}

// execFinishedMsg reports the outcome of an asynchronous code execution.
type execFinishedMsg struct {
	code   string
	result []byte
	err    error
}

// Update implements the Bubble Tea Model interface.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var commands []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := m.handleKeyInput(msg); cmd != nil {
			commands = append(commands, cmd)
		}

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case logLineMsg:
		m.appendEntry(entryLog, msg.text)

	case connStateMsg:
		m.handleConnState(msg.connected)

	case connectFinishedMsg:
		m.handleConnectFinished(msg)

	case execFinishedMsg:
		m.handleExecFinished(msg)

	default:
		commands = append(commands, m.updateInputs(msg)...)
	}

	if len(commands) > 0 {
		return m, tea.Batch(commands...)
	}
	return m, nil
}

// handleKeyInput processes keyboard input according to the editing state.
func (m *Model) handleKeyInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.executor.Disconnect()
		return tea.Quit

	case "ctrl+t":
		return m.toggleConnection()

	case "ctrl+e":
		return m.submitCode()

	case "ctrl+l":
		m.history = nil
		m.refreshViewport(true)
		return nil

	case "ctrl+h":
		m.beginHostEdit()
		return nil

	case "esc":
		if m.editingHost {
			m.endHostEdit(false)
		}
		return nil

	case "enter":
		if m.editingHost {
			m.endHostEdit(true)
			return nil
		}
	}

	cmds := m.updateInputs(msg)
	if len(cmds) > 0 {
		return tea.Batch(cmds...)
	}
	return nil
}

// updateInputs forwards a message to whichever input component has focus.
func (m *Model) updateInputs(msg tea.Msg) []tea.Cmd {
	var commands []tea.Cmd
	var cmd tea.Cmd

	if m.editingHost {
		m.hostInput, cmd = m.hostInput.Update(msg)
	} else {
		m.codeInput, cmd = m.codeInput.Update(msg)
	}
	if cmd != nil {
		commands = append(commands, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	if cmd != nil {
		commands = append(commands, cmd)
	}
	return commands
}

// toggleConnection connects when disconnected and disconnects when connected.
func (m *Model) toggleConnection() tea.Cmd {
	if m.connecting {
		return nil
	}
	if m.executor.IsConnected() {
		m.executor.Disconnect()
		return nil
	}

	m.connecting = true
	m.appendEntry(entryStatus, "Connecting to "+m.executor.Endpoint()+"...")
	executor := m.executor
	return func() tea.Msg {
		return connectFinishedMsg{err: executor.ConnectOrFail(context.Background())}
	}
}

// submitCode sends the textarea contents to the remote server.
func (m *Model) submitCode() tea.Cmd {
	code := strings.TrimSpace(m.codeInput.Value())
	if code == "" || m.executing {
		return nil
	}
	if !m.executor.IsConnected() {
		m.appendEntry(entryError, "Not connected")
		return nil
	}

	m.executing = true
	m.codeInput.Reset()
	m.appendEntry(entryCode, m.renderer.HighlightLua(code))

	executor := m.executor
	return func() tea.Msg {
		result, err := executor.ExecuteCode(context.Background(), code)
		return execFinishedMsg{code: code, result: result, err: err}
	}
}

func (m *Model) beginHostEdit() {
	m.editingHost = true
	m.hostInput.SetValue("")
	m.hostInput.Focus()
	m.codeInput.Blur()
}

// endHostEdit leaves host editing mode, applying the new endpoint when the
// edit was confirmed. Changing the endpoint disconnects an open session.
func (m *Model) endHostEdit(apply bool) {
	host := strings.TrimSpace(m.hostInput.Value())
	if apply && host != "" {
		m.executor.SetEndpoint(host)
		m.appendEntry(entryStatus, "Endpoint set to "+m.executor.Endpoint())
	}
	m.editingHost = false
	m.hostInput.Blur()
	m.codeInput.Focus()
}

// handleConnState reacts to a state transition pushed by the engine.
func (m *Model) handleConnState(connected bool) {
	if m.connected == connected {
		return
	}
	m.connected = connected
	if connected {
		m.appendEntry(entryStatus, "Connected to "+m.executor.Endpoint())
	} else {
		m.appendEntry(entryStatus, "Disconnected")
	}
}

// handleConnectFinished reports the outcome of a connect attempt and
// persists the host after a success.
func (m *Model) handleConnectFinished(msg connectFinishedMsg) {
	m.connecting = false
	if msg.err != nil {
		m.appendEntry(entryError, msg.err.Error())
		return
	}
	if host, _, err := net.SplitHostPort(m.executor.Endpoint()); err == nil {
		if err := m.configManager.RememberHost(host); err != nil {
			m.logger.LogConfigError("remember host", err)
		}
	}
}

// handleExecFinished appends the execution result, or the failure, to the
// history. A remote Lua error leaves the session connected; the entry color
// is the only distinction the user needs.
func (m *Model) handleExecFinished(msg execFinishedMsg) {
	m.executing = false
	if msg.err != nil {
		m.appendEntry(entryError, msg.err.Error())
		return
	}
	text := string(msg.result)
	if text == "" {
		text = "(no result)"
	}
	m.appendEntry(entryResult, text)
}
