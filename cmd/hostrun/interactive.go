package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
	"github.com/wippyai/proxywasm-sdk/vmhost"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateEditRequest modelState = iota
	stateShowResult
)

// input indexes into interactiveModel.inputs.
const (
	inputPath = iota
	inputMethod
	inputHeaders
	inputBody
	inputCount
)

type interactiveModel struct {
	err      error
	rt       *vmhost.Runtime
	plugin   *vmhost.Plugin
	filename string

	inputs   []textinput.Model
	focusIdx int
	state    modelState

	// loadPlugin closes over the configuration buffers.
	loadPlugin func() tea.Msg

	nextStreamID uint32
	result       dispatchResult
	logCursor    int
}

type dispatchResult struct {
	action    types.Action
	headers   [][2]string
	responses []vmhost.LocalResponse
	calls     []vmhost.PendingCall
	logs      []vmhost.LogEntry
}

type loadedMsg struct {
	err    error
	rt     *vmhost.Runtime
	plugin *vmhost.Plugin
}

type dispatchMsg struct {
	err    error
	result dispatchResult
}

func newInteractiveModel(filename string, config, vmConfig []byte) *interactiveModel {
	m := &interactiveModel{
		filename:     filename,
		state:        stateEditRequest,
		nextStreamID: 2,
	}
	m.inputs = make([]textinput.Model, inputCount)
	for i, setup := range []struct {
		prompt, placeholder, value string
	}{
		{"path: ", "/", "/"},
		{"method: ", "GET", "GET"},
		{"headers: ", "k=v,k2=v2", ""},
		{"body: ", "", ""},
	} {
		ti := textinput.New()
		ti.Prompt = setup.prompt
		ti.Placeholder = setup.placeholder
		ti.SetValue(setup.value)
		ti.Width = 48
		m.inputs[i] = ti
	}
	m.inputs[inputPath].Focus()

	m.loadPlugin = func() tea.Msg {
		ctx := context.Background()

		data, err := os.ReadFile(filename)
		if err != nil {
			return loadedMsg{err: err}
		}
		rt, err := vmhost.New(ctx, vmhost.Config{MemoryLimitPages: 1024})
		if err != nil {
			return loadedMsg{err: err}
		}
		rt.SetVMConfiguration(vmConfig)
		rt.SetPluginConfiguration(config)

		plugin, err := rt.Load(ctx, data)
		if err != nil {
			rt.Close(ctx)
			return loadedMsg{err: err}
		}

		if err := plugin.OnContextCreate(ctx, 1, 0); err != nil {
			rt.Close(ctx)
			return loadedMsg{err: err}
		}
		if ok, err := plugin.OnVMStart(ctx, 1); err != nil || !ok {
			rt.Close(ctx)
			if err == nil {
				err = fmt.Errorf("plugin rejected vm start")
			}
			return loadedMsg{err: err}
		}
		if ok, err := plugin.OnConfigure(ctx, 1); err != nil || !ok {
			rt.Close(ctx)
			if err == nil {
				err = fmt.Errorf("plugin rejected configuration")
			}
			return loadedMsg{err: err}
		}

		return loadedMsg{rt: rt, plugin: plugin}
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadPlugin
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.rt != nil {
				m.rt.Close(context.Background())
			}
			return m, tea.Quit

		case "q":
			if m.state == stateShowResult {
				if m.rt != nil {
					m.rt.Close(context.Background())
				}
				return m, tea.Quit
			}

		case "tab", "down":
			if m.state == stateEditRequest {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "shift+tab", "up":
			if m.state == stateEditRequest {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + len(m.inputs) - 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateEditRequest:
				if m.plugin != nil {
					return m, m.dispatchRequest
				}
			case stateShowResult:
				m.state = stateEditRequest
				m.err = nil
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateEditRequest
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.plugin = msg.plugin

	case dispatchMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateEditRequest {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) dispatchRequest() tea.Msg {
	ctx := context.Background()

	id := m.nextStreamID
	m.nextStreamID++

	requestHeaders := append([][2]string{
		{":path", m.inputs[inputPath].Value()},
		{":method", m.inputs[inputMethod].Value()},
		{":authority", "localhost"},
	}, parseHeaders(m.inputs[inputHeaders].Value())...)
	body := []byte(m.inputs[inputBody].Value())

	m.plugin.SetHeaderMap(id, types.MapTypeHttpRequestHeaders, requestHeaders)
	if err := m.plugin.OnContextCreate(ctx, id, 1); err != nil {
		return dispatchMsg{err: err}
	}

	action, err := m.plugin.OnRequestHeaders(ctx, id, len(body) == 0)
	if err != nil {
		return dispatchMsg{err: err}
	}
	if len(body) > 0 && action == types.ActionContinue {
		m.plugin.AppendBuffer(id, types.BufferTypeHttpRequestBody, body)
		if action, err = m.plugin.OnRequestBody(ctx, id, true); err != nil {
			return dispatchMsg{err: err}
		}
	}

	result := dispatchResult{
		action:    action,
		headers:   m.plugin.HeaderMap(id, types.MapTypeHttpRequestHeaders),
		responses: m.plugin.LocalResponses(),
		calls:     m.plugin.PendingCalls(),
	}

	if err := m.plugin.OnLog(ctx, id); err != nil {
		return dispatchMsg{err: err}
	}
	if _, err := m.plugin.OnDone(ctx, id); err != nil {
		return dispatchMsg{err: err}
	}
	if err := m.plugin.OnDelete(ctx, id); err != nil {
		return dispatchMsg{err: err}
	}
	m.plugin.DropContextState(id)

	// Only show log lines this request produced.
	all := m.plugin.Logs()
	result.logs = all[m.logCursor:]
	m.logCursor = len(all)

	return dispatchMsg{result: result}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Proxy-Wasm Host"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.plugin == nil {
		b.WriteString("Loading plugin...")
		return b.String()
	}

	switch m.state {
	case stateEditRequest:
		b.WriteString("Synthetic request:\n\n")
		for i := range m.inputs {
			b.WriteString(m.inputs[i].View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter send • ctrl+c quit"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter back • q quit"))
			return b.String()
		}

		b.WriteString(labelStyle.Render("action"))
		b.WriteString(": ")
		if m.result.action == types.ActionPause {
			b.WriteString(pausedStyle.Render(m.result.action.String()))
		} else {
			b.WriteString(actionStyle.Render(m.result.action.String()))
		}
		b.WriteString("\n\n")

		b.WriteString(labelStyle.Render("request headers after plugin"))
		b.WriteString(":\n")
		for _, h := range m.result.headers {
			b.WriteString("  " + h[0] + ": " + h[1] + "\n")
		}

		if len(m.result.responses) > 0 {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("local responses"))
			b.WriteString(":\n")
			for _, r := range m.result.responses {
				b.WriteString(fmt.Sprintf("  %d %s\n", r.StatusCode, r.Body))
			}
		}

		if len(m.result.calls) > 0 {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("pending outbound calls"))
			b.WriteString(":\n")
			for _, c := range m.result.calls {
				b.WriteString(fmt.Sprintf("  token=%d upstream=%s timeout=%s\n", c.Token, c.Upstream, c.Timeout))
			}
		}

		if len(m.result.logs) > 0 {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("plugin logs"))
			b.WriteString(":\n")
			for _, entry := range m.result.logs {
				b.WriteString(logStyle.Render(fmt.Sprintf("  [%s] %s", entry.Level, entry.Message)))
				b.WriteString("\n")
			}
		}

		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter new request • q quit"))
	}

	return b.String()
}

func runInteractive(filename string, config, vmConfig []byte) error {
	p := tea.NewProgram(newInteractiveModel(filename, config, vmConfig), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
