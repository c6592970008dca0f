// Visual presentation for the console window: a header with connection
// status and API details, the scrolling history pane, and the Lua input area.
package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	connectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A6E3A1"))

	disconnectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#F38BA8"))

	codeEntryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	errorEntryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))

	statusEntryStyle = lipgloss.NewStyle().
				Italic(true).
				Foreground(lipgloss.Color("#6C7086"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#6C7086")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))
)

// View implements the Bubble Tea Model interface.
func (m *Model) View() string {
	if !m.inputReady {
		return "Initializing console..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(m.statusMessage))
	return b.String()
}

// renderHeader shows the endpoint, connection state, and the API details
// reported by the server during the handshake.
func (m *Model) renderHeader() string {
	title := headerStyle.Render("Dread Remote Lua Console")

	var state string
	switch {
	case m.connecting:
		state = statusEntryStyle.Render("connecting to " + m.executor.Endpoint() + "...")
	case m.connected:
		version, bufferSize, bootstrapped := m.executor.APIInfo()
		state = connectedStyle.Render(fmt.Sprintf("%s · api v%d · buffer %d · bootstrap %t",
			m.executor.Endpoint(), version, bufferSize, bootstrapped))
	default:
		state = disconnectedStyle.Render(m.executor.Endpoint() + " · disconnected")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", state)
}

// renderHistory renders every history entry with its kind's styling.
func (m *Model) renderHistory() string {
	if len(m.history) == 0 {
		return statusEntryStyle.Render("No history yet. Connect and run some Lua.")
	}

	var b strings.Builder
	for i, entry := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		switch entry.kind {
		case entryCode:
			// Chroma already colored the snippet; only the prefix is styled.
			b.WriteString(codeEntryStyle.Render("LUA> "))
			b.WriteString(entry.text)
		case entryError:
			b.WriteString(errorEntryStyle.Render(entry.text))
		case entryStatus:
			b.WriteString(statusEntryStyle.Render(entry.text))
		default:
			b.WriteString(entry.text)
		}
	}
	return b.String()
}

// renderInput shows the host editor while editing, the code area otherwise.
func (m *Model) renderInput() string {
	if m.editingHost {
		return inputStyle.Render("Host: " + m.hostInput.View())
	}
	return inputStyle.Render(m.codeInput.View())
}

// setSize lays the panes out for a new terminal size.
func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height

	inputHeight := m.codeInput.Height() + 2 // border
	viewportHeight := height - inputHeight - 3
	if viewportHeight < 3 {
		viewportHeight = 3
	}

	if !m.inputReady {
		m.viewport = viewport.New(width, viewportHeight)
		m.inputReady = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewportHeight
	}
	m.codeInput.SetWidth(width - 4)
	m.hostInput.Width = width - 12
	m.refreshViewport(true)
}
