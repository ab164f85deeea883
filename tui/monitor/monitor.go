// Package monitor is a live terminal view of a middleware store.
//
// The model subscribes to the client's change stream and, for every change,
// re-reads only the namespace that was tagged. An untagged change reloads
// the whole state.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/grovetools/mwstate/pkg/daemon"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/grovetools/mwstate/tui/theme"
)

// maxEvents bounds the event panel.
const maxEvents = 20

type streamStartedMsg struct {
	changes <-chan notify.Namespace
}

type changeMsg struct {
	namespace notify.Namespace
}

type streamClosedMsg struct{}

type refreshedMsg struct {
	namespace notify.Namespace
	state     store.State
	err       error
}

// Model is the bubbletea model of the monitor.
type Model struct {
	ctx    context.Context
	client daemon.Client
	theme  *theme.Theme

	changes   <-chan notify.Namespace
	state     store.State
	streaming bool
	err       error
	updatedAt time.Time
	updates   int

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// New creates a monitor reading from client. ctx bounds the change stream.
func New(ctx context.Context, client daemon.Client) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Cyan)

	return Model{
		ctx:     ctx,
		client:  client,
		theme:   theme.DefaultTheme,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: s,
		state: store.State{
			Subscriptions: map[string]int{},
			Methods:       map[string][]models.RPCMethod{},
		},
	}
}

// Init starts the change stream.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startStream(), m.spinner.Tick)
}

func (m Model) startStream() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.client.StreamChanges(m.ctx)
		if err != nil {
			return refreshedMsg{namespace: notify.None, err: err}
		}
		return streamStartedMsg{changes: ch}
	}
}

func waitForChange(ch <-chan notify.Namespace) tea.Cmd {
	return func() tea.Msg {
		ns, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return changeMsg{namespace: ns}
	}
}

// refresh re-reads the part of the state tagged by ns.
func (m Model) refresh(ns notify.Namespace) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		msg := refreshedMsg{namespace: ns}
		switch ns {
		case notify.Subscriptions:
			msg.state.Subscriptions, msg.err = client.GetAllSubscriptions(ctx)
		case notify.Events:
			msg.state.Events, msg.err = client.GetEventLog(ctx)
		case notify.Services:
			msg.state.Services, msg.err = client.GetAvailableRPCServices(ctx)
		case notify.Methods:
			msg.state.Methods, msg.err = client.GetAvailableRPCMethods(ctx)
		default:
			msg.namespace = notify.None
			var st *store.State
			st, msg.err = client.GetState(ctx)
			if st != nil {
				msg.state = *st
			}
		}
		return msg
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.help.View(m.keys))
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.bodyView())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reload):
			return m, m.refresh(notify.None)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case streamStartedMsg:
		m.changes = msg.changes
		m.streaming = true
		m.err = nil
		return m, waitForChange(m.changes)

	case changeMsg:
		return m, tea.Batch(m.refresh(msg.namespace), waitForChange(m.changes))

	case streamClosedMsg:
		m.streaming = false
		return m, nil

	case refreshedMsg:
		m.apply(msg)
		if m.ready {
			m.viewport.SetContent(m.bodyView())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) apply(msg refreshedMsg) {
	if msg.err != nil {
		m.err = msg.err
		return
	}
	m.err = nil
	m.updates++
	m.updatedAt = time.Now()

	switch msg.namespace {
	case notify.Subscriptions:
		m.state.Subscriptions = msg.state.Subscriptions
	case notify.Events:
		m.state.Events = msg.state.Events
	case notify.Services:
		m.state.Services = msg.state.Services
	case notify.Methods:
		m.state.Methods = msg.state.Methods
	default:
		m.state = msg.state
	}
}

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return m.headerView() + "\n" + m.bodyView()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.help.View(m.keys),
	)
}

func (m Model) headerView() string {
	t := m.theme
	var status string
	switch {
	case m.err != nil:
		status = t.Error.Render("error: " + m.err.Error())
	case m.streaming:
		status = m.spinner.View() + " " + t.Success.Render("live")
	default:
		status = t.Warning.Render("not streaming")
	}

	source := "in-process store"
	if m.client.IsRunning() {
		source = "daemon"
	}

	line := fmt.Sprintf("%s  %s  %s",
		t.Header.Render("mwstate monitor"),
		status,
		t.Muted.Render(source),
	)
	if !m.updatedAt.IsZero() {
		line += t.Muted.Render(fmt.Sprintf("  %d updates, last %s", m.updates, m.updatedAt.Format("15:04:05")))
	}
	return line
}

func (m Model) bodyView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.panel("Subscriptions", m.subscriptionLines()),
		m.panel("Services", m.serviceLines()),
		m.panel("Events", m.eventLines()),
	)
}

func (m Model) panel(title string, lines []string) string {
	style := m.theme.Panel
	if m.width > 2 {
		style = style.Width(m.width - 2)
	}
	body := m.theme.Title.Render(title)
	if len(lines) == 0 {
		body += "\n" + m.theme.Muted.Render("none")
	} else {
		body += "\n" + strings.Join(lines, "\n")
	}
	return style.Render(body)
}

func (m Model) subscriptionLines() []string {
	masks := make([]string, 0, len(m.state.Subscriptions))
	for mask := range m.state.Subscriptions {
		masks = append(masks, mask)
	}
	sort.Strings(masks)

	lines := make([]string, 0, len(masks))
	for _, mask := range masks {
		lines = append(lines, fmt.Sprintf("%s  %s", m.theme.Highlight.Render(mask),
			m.theme.Muted.Render(fmt.Sprintf("x%d", m.state.Subscriptions[mask]))))
	}
	return lines
}

func (m Model) serviceLines() []string {
	lines := make([]string, 0, len(m.state.Services))
	for _, svc := range m.state.Services {
		methods, ok := m.state.Methods[svc.Name]
		count := "methods not loaded"
		if ok {
			count = fmt.Sprintf("%d methods", len(methods))
		}
		lines = append(lines, fmt.Sprintf("%s  %s", svc.Name, m.theme.Muted.Render(count)))
	}
	return lines
}

func (m Model) eventLines() []string {
	events := m.state.Events
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		ts := "--:--:--"
		if !ev.ReceivedAt.IsZero() {
			ts = ev.ReceivedAt.Format("15:04:05")
		}
		lines = append(lines, fmt.Sprintf("%s  %s", m.theme.Muted.Render(ts), ev.Name))
	}
	return lines
}

// Run starts the monitor as a full-screen program.
func Run(ctx context.Context, client daemon.Client) error {
	p := tea.NewProgram(New(ctx, client), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
