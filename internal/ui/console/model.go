// Package console implements the terminal window of the Dread Remote
// Console: a scrolling log history, a multi-line Lua input area, and
// connection controls, built on Bubble Tea. The model consumes the protocol
// engine's notifications and drives it through the LuaExecutor interface.
package console

import (
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dread-remote/console/internal/interfaces"
	"github.com/dread-remote/console/internal/logging"
)

// entryKind distinguishes history lines for styling: submitted code is shown
// green, failures red, server log lines plain.
type entryKind int

const (
	entryLog entryKind = iota
	entryCode
	entryResult
	entryError
	entryStatus
)

// historyEntry is one rendered line group in the history pane.
type historyEntry struct {
	kind      entryKind
	text      string
	timestamp time.Time
}

// Model holds the complete window state and its injected dependencies.
type Model struct {
	executor      interfaces.LuaExecutor
	renderer      interfaces.ContentRenderer
	configManager interfaces.ConfigManager
	logger        *logging.Logger

	history    []historyEntry
	viewport   viewport.Model
	codeInput  textarea.Model
	hostInput  textinput.Model
	inputReady bool

	connected   bool
	connecting  bool
	executing   bool
	editingHost bool

	width  int
	height int

	statusMessage string
}

// NewModel creates the window model with all dependencies injected.
func NewModel(
	executor interfaces.LuaExecutor,
	renderer interfaces.ContentRenderer,
	configManager interfaces.ConfigManager,
) *Model {
	codeInput := textarea.New()
	codeInput.Placeholder = "Lua code to execute remotely..."
	codeInput.SetHeight(4)
	codeInput.ShowLineNumbers = false
	codeInput.Focus()

	hostInput := textinput.New()
	hostInput.Placeholder = "game host or IP"
	hostInput.CharLimit = 128

	return &Model{
		executor:      executor,
		renderer:      renderer,
		configManager: configManager,
		logger:        logging.GetGlobalLogger().WithComponent("ui"),
		codeInput:     codeInput,
		hostInput:     hostInput,
		connected:     executor.IsConnected(),
		statusMessage: "ctrl+t connect · ctrl+e execute · ctrl+h host · ctrl+l clear · ctrl+c quit",
	}
}

// Init implements the Bubble Tea Model interface.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// appendEntry adds a history entry and refreshes the viewport, keeping the
// view pinned to the bottom when it already was.
func (m *Model) appendEntry(kind entryKind, text string) {
	pinned := !m.inputReady || m.viewport.AtBottom()
	m.history = append(m.history, historyEntry{
		kind:      kind,
		text:      text,
		timestamp: time.Now(),
	})
	m.refreshViewport(pinned)
}

// refreshViewport re-renders the history into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.inputReady {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}
