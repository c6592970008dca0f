package console

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dread-remote/console/internal/interfaces"
	"github.com/dread-remote/console/internal/protocol"
)

// fakeExecutor is a scriptable LuaExecutor for window tests.
type fakeExecutor struct {
	connected  bool
	endpoint   string
	lastErr    error
	execResult []byte
	execErr    error
	executed   []string
}

func (f *fakeExecutor) Connect(ctx context.Context) bool { f.connected = true; return true }
func (f *fakeExecutor) ConnectOrFail(ctx context.Context) error {
	if f.lastErr != nil {
		return f.lastErr
	}
	f.connected = true
	return nil
}
func (f *fakeExecutor) ExecuteCode(ctx context.Context, code string) ([]byte, error) {
	f.executed = append(f.executed, code)
	return f.execResult, f.execErr
}
func (f *fakeExecutor) Disconnect()             { f.connected = false }
func (f *fakeExecutor) IsConnected() bool       { return f.connected }
func (f *fakeExecutor) LastError() error        { return f.lastErr }
func (f *fakeExecutor) SetEndpoint(host string) { f.endpoint = host; f.connected = false }
func (f *fakeExecutor) Endpoint() string        { return f.endpoint }
func (f *fakeExecutor) APIInfo() (int, int, bool) {
	if !f.connected {
		return 0, 0, false
	}
	return 3, 4096, true
}

// plainRenderer passes content through unchanged.
type plainRenderer struct{}

func (plainRenderer) HighlightLua(code string) string { return code }
func (plainRenderer) SetTheme(name string) error      { return nil }

// memoryConfig records remembered hosts without touching the filesystem.
type memoryConfig struct {
	settings   interfaces.Settings
	remembered []string
}

func (c *memoryConfig) Load() (*interfaces.Settings, error) { return &c.settings, nil }
func (c *memoryConfig) Save(s *interfaces.Settings) error   { c.settings = *s; return nil }
func (c *memoryConfig) RememberHost(host string) error {
	c.remembered = append(c.remembered, host)
	return nil
}
func (c *memoryConfig) ConfigPath() string { return "memory" }

func newTestModel(t *testing.T) (*Model, *fakeExecutor, *memoryConfig) {
	t.Helper()
	executor := &fakeExecutor{endpoint: "127.0.0.1:6969"}
	cfg := &memoryConfig{}
	model := NewModel(executor, plainRenderer{}, cfg)
	// Size message initializes the viewport, as the terminal does on startup.
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(*Model), executor, cfg
}

func historyTexts(m *Model) []string {
	texts := make([]string, len(m.history))
	for i, entry := range m.history {
		texts[i] = entry.text
	}
	return texts
}

func TestLogLinesAppendToHistory(t *testing.T) {
	model, _, _ := newTestModel(t)

	updated, _ := model.Update(logLineMsg{text: "Log: player spawned"})
	model = updated.(*Model)

	require.Len(t, model.history, 1)
	assert.Equal(t, entryLog, model.history[0].kind)
	assert.Equal(t, "Log: player spawned", model.history[0].text)
}

func TestConnectionStateTransitions(t *testing.T) {
	model, _, _ := newTestModel(t)

	updated, _ := model.Update(connStateMsg{connected: true})
	model = updated.(*Model)
	assert.True(t, model.connected)
	assert.Contains(t, historyTexts(model), "Connected to 127.0.0.1:6969")

	// A repeated notification with no transition adds nothing.
	before := len(model.history)
	updated, _ = model.Update(connStateMsg{connected: true})
	model = updated.(*Model)
	assert.Len(t, model.history, before)

	updated, _ = model.Update(connStateMsg{connected: false})
	model = updated.(*Model)
	assert.False(t, model.connected)
	assert.Contains(t, historyTexts(model), "Disconnected")
}

func TestSubmitCodeRequiresConnection(t *testing.T) {
	model, executor, _ := newTestModel(t)
	executor.connected = false

	model.codeInput.SetValue("return 1")
	cmd := model.submitCode()

	assert.Nil(t, cmd)
	require.NotEmpty(t, model.history)
	assert.Equal(t, entryError, model.history[len(model.history)-1].kind)
	assert.Empty(t, executor.executed)
}

func TestSubmitCodeRunsAsynchronously(t *testing.T) {
	model, executor, _ := newTestModel(t)
	executor.connected = true
	executor.execResult = []byte("2")

	model.codeInput.SetValue("return 1+1")
	cmd := model.submitCode()
	require.NotNil(t, cmd)
	assert.True(t, model.executing)
	assert.Empty(t, model.codeInput.Value(), "input resets on submit")

	msg := cmd()
	exec, ok := msg.(execFinishedMsg)
	require.True(t, ok)
	assert.Equal(t, []string{"return 1+1"}, executor.executed)

	updated, _ := model.Update(exec)
	model = updated.(*Model)
	assert.False(t, model.executing)
	last := model.history[len(model.history)-1]
	assert.Equal(t, entryResult, last.kind)
	assert.Equal(t, "2", last.text)
}

func TestSubmitCodeSkipsBlankInput(t *testing.T) {
	model, executor, _ := newTestModel(t)
	executor.connected = true

	model.codeInput.SetValue("   \n  ")
	assert.Nil(t, model.submitCode())
	assert.Empty(t, executor.executed)
}

func TestRemoteErrorIsShownWithoutDisconnecting(t *testing.T) {
	model, executor, _ := newTestModel(t)
	executor.connected = true
	executor.execErr = &protocol.RemoteExecutionError{Message: "attempt to call a nil value"}

	model.codeInput.SetValue("nope()")
	cmd := model.submitCode()
	require.NotNil(t, cmd)

	updated, _ := model.Update(cmd())
	model = updated.(*Model)
	last := model.history[len(model.history)-1]
	assert.Equal(t, entryError, last.kind)
	assert.Contains(t, last.text, "attempt to call a nil value")
	assert.True(t, executor.IsConnected())
}

func TestEmptyResultRendersPlaceholder(t *testing.T) {
	model, executor, _ := newTestModel(t)
	executor.connected = true

	model.codeInput.SetValue("x = 1")
	cmd := model.submitCode()
	require.NotNil(t, cmd)

	updated, _ := model.Update(cmd())
	model = updated.(*Model)
	assert.Equal(t, "(no result)", model.history[len(model.history)-1].text)
}

func TestConnectFinishedRemembersHost(t *testing.T) {
	model, executor, cfg := newTestModel(t)
	executor.connected = true

	updated, _ := model.Update(connectFinishedMsg{})
	model = updated.(*Model)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.remembered)
	assert.False(t, model.connecting)
}

func TestConnectFinishedRemembersIPv6Host(t *testing.T) {
	model, executor, cfg := newTestModel(t)
	executor.connected = true
	executor.endpoint = "[::1]:6969"

	updated, _ := model.Update(connectFinishedMsg{})
	model = updated.(*Model)
	assert.Equal(t, []string{"::1"}, cfg.remembered)
	assert.False(t, model.connecting)
}

func TestConnectFailureAppearsInHistory(t *testing.T) {
	model, _, cfg := newTestModel(t)

	updated, _ := model.Update(connectFinishedMsg{err: errors.New("connection refused")})
	model = updated.(*Model)
	last := model.history[len(model.history)-1]
	assert.Equal(t, entryError, last.kind)
	assert.Contains(t, last.text, "connection refused")
	assert.Empty(t, cfg.remembered)
}

func TestHostEditAppliesOnConfirm(t *testing.T) {
	model, executor, _ := newTestModel(t)

	model.beginHostEdit()
	assert.True(t, model.editingHost)

	model.hostInput.SetValue("192.168.1.77")
	model.endHostEdit(true)
	assert.False(t, model.editingHost)
	assert.Equal(t, "192.168.1.77", executor.endpoint)
}

func TestHostEditDiscardsOnCancel(t *testing.T) {
	model, executor, _ := newTestModel(t)

	model.beginHostEdit()
	model.hostInput.SetValue("192.168.1.77")
	model.endHostEdit(false)
	assert.False(t, model.editingHost)
	assert.Equal(t, "127.0.0.1:6969", executor.endpoint)
}

func TestClearHistory(t *testing.T) {
	model, _, _ := newTestModel(t)

	updated, _ := model.Update(logLineMsg{text: "one"})
	model = updated.(*Model)
	updated, _ = model.Update(logLineMsg{text: "two"})
	model = updated.(*Model)
	require.Len(t, model.history, 2)

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	model = updated.(*Model)
	assert.Empty(t, model.history)
}
