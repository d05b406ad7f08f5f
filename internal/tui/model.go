// Package tui is the terminal front-end. Screens follow the navigator: each
// transition mounts the current request exactly once, and a screen whose
// parameters are missing renders the navigator's error state.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/app"
	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/navigation"
	"github.com/agro-insight/agroinsight/internal/session"
)

// Model is the root bubbletea model.
type Model struct {
	app  *app.App
	root context.Context
	keys KeyMap

	width, height int

	screen navigation.Screen
	mount  navigation.MountState
	// seq identifies the current mount; results from older mounts are
	// dropped and their context is cancelled.
	seq    int
	ctx    context.Context
	cancel context.CancelFunc

	inputs []textinput.Model
	focus  int

	token  string
	farmID int64
	farms  []agro.Farm
	tasks  []agro.Task
	task   agro.Task
	cursor int

	loading bool
	spinner spinner.Model
	notice  string
	err     string
}

// New builds the model. Run it with tea.NewProgram.
func New(ctx context.Context, a *app.App) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = InputPromptStyle
	return Model{
		app:     a,
		root:    ctx,
		ctx:     ctx,
		keys:    DefaultKeyMap(),
		spinner: sp,
		loading: true,
	}
}

// --- Messages ---

type startedMsg struct{ err error }

type changeMsg app.Change

type actionMsg struct {
	notice string
	err    error
}

type farmsMsg struct {
	seq   int
	farms []agro.Farm
	err   error
}

type tasksMsg struct {
	seq   int
	tasks []agro.Task
	err   error
}

type taskMsg struct {
	seq  int
	task agro.Task
	err  error
}

// Init restores the session and starts listening for session changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, startCmd(m.root, m.app), waitForChange(m.app.Changes()))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startedMsg:
		m.loading = false
		next, cmd := m.remount()
		if msg.err != nil {
			next.err = gateway.UserMessage(msg.err)
		}
		return next, cmd

	case changeMsg:
		wait := waitForChange(m.app.Changes())
		if !msg.Navigated {
			return m, wait
		}
		next, cmd := m.remount()
		if msg.From == session.Authenticated && msg.To == session.Unauthenticated && msg.Err != nil {
			next.err = "Signed out: " + gateway.UserMessage(msg.Err)
		}
		return next, tea.Batch(cmd, wait)

	case actionMsg:
		m.loading = false
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.err = gateway.UserMessage(msg.err)
			}
			return m, nil
		}
		m.err = ""
		m.notice = msg.notice
		return m, nil

	case farmsMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.farms, m.err = msg.farms, errText(msg.err)
		return m, nil

	case tasksMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		m.tasks, m.err = msg.tasks, errText(msg.err)
		return m, nil

	case taskMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = errText(msg.err)
			return m, nil
		}
		m.task, m.err = msg.task, ""
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		if m.app.Nav.DrawerOpen() {
			return m.updateDrawer(msg)
		}
		if m.mount.Failed() {
			if key.Matches(msg, m.keys.Back) {
				return m.back()
			}
			return m, nil
		}
		return m.updateScreen(msg)
	}

	return m, nil
}

func errText(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}
	return gateway.UserMessage(err)
}

// remount cancels the previous screen's work and mounts the navigator's
// current request.
func (m Model) remount() (Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.seq++
	m.ctx, m.cancel = context.WithCancel(m.root)
	m.err, m.notice = "", ""
	m.loading = false
	m.cursor, m.focus = 0, 0
	m.inputs = nil

	screen, ok := m.app.Nav.Current()
	if !ok {
		return m, nil
	}
	m.screen = screen
	nav := m.app.Nav

	switch screen {
	case navigation.ScreenLogin:
		r, st := navigation.MountAs[navigation.Login](nav)
		if m.mount = st; st.Failed() {
			return m, nil
		}
		m.inputs = loginInputs(r.Email)
		if r.Email != "" {
			m.focusInput(1)
		}
		return m, textinput.Blink

	case navigation.ScreenVerifyCode:
		r, st := navigation.MountAs[navigation.VerifyCode](nav)
		if m.mount = st; st.Failed() {
			return m, nil
		}
		m.inputs = codeInputs()
		m.notice = "We sent a code to " + r.Email
		return m, textinput.Blink

	case navigation.ScreenHome:
		r, st := navigation.MountAs[navigation.Home](nav)
		if m.mount = st; st.Failed() {
			return m, nil
		}
		nav.Replace(navigation.FarmList{Token: r.Token})
		return m.remount()

	case navigation.ScreenFarmList:
		r, st := navigation.MountAs[navigation.FarmList](nav)
		if m.mount = st; st.Failed() {
			return m, nil
		}
		m.token = r.Token
		m.loading = true
		return m, loadFarmsCmd(m.ctx, m.app.API, m.seq)

	case navigation.ScreenTaskList:
		r, st := navigation.MountAs[navigation.TaskList](nav)
		if m.mount = st; st.Failed() {
			return m, nil
		}
		m.token, m.farmID = r.Token, r.FarmID
		m.loading = true
		return m, loadTasksCmd(m.ctx, m.app.API, m.seq, r.FarmID)

	case navigation.ScreenTaskDetail:
		r, st := navigation.MountAs[navigation.TaskDetail](nav)
		if m.mount = st; st.Failed() {
			return m, nil
		}
		m.token, m.farmID = r.Token, r.FarmID
		m.task = agro.Task{}
		m.loading = true
		return m, loadTaskCmd(m.ctx, m.app.API, m.seq, r.TaskID)

	default:
		if _, err := nav.Mount(); err != nil {
			m.mount = navigation.MountState{Screen: screen, Err: err, Message: gateway.UserMessage(err)}
			return m, nil
		}
		m.mount = navigation.MountState{
			Screen:  screen,
			Err:     fmt.Errorf("%s is not available in the terminal", screen),
			Message: screen.Title() + " is only available in the mobile app.",
		}
		return m, nil
	}
}

func (m Model) back() (Model, tea.Cmd) {
	if !m.app.Nav.Back() {
		return m, nil
	}
	return m.remount()
}

func (m Model) updateDrawer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Drawer):
		m.app.Nav.CloseDrawer()
	case key.Matches(msg, m.keys.Logout):
		m.app.Nav.CloseDrawer()
		m.loading = true
		return m, logoutCmd(m.root, m.app.Session)
	}
	return m, nil
}

func (m Model) updateScreen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case navigation.ScreenLogin:
		return m.updateLogin(msg)
	case navigation.ScreenVerifyCode:
		return m.updateVerify(msg)
	}

	if key.Matches(msg, m.keys.Drawer) {
		m.app.Nav.OpenDrawer()
		return m, nil
	}

	switch m.screen {
	case navigation.ScreenFarmList:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor = max(m.cursor-1, 0)
		case key.Matches(msg, m.keys.Down):
			m.cursor = min(m.cursor+1, max(len(m.farms)-1, 0))
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, loadFarmsCmd(m.ctx, m.app.API, m.seq)
		case key.Matches(msg, m.keys.Enter):
			if m.cursor < len(m.farms) {
				m.app.Nav.Navigate(navigation.TaskList{Token: m.token, FarmID: m.farms[m.cursor].ID})
				return m.remount()
			}
		}

	case navigation.ScreenTaskList:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor = max(m.cursor-1, 0)
		case key.Matches(msg, m.keys.Down):
			m.cursor = min(m.cursor+1, max(len(m.tasks)-1, 0))
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, loadTasksCmd(m.ctx, m.app.API, m.seq, m.farmID)
		case key.Matches(msg, m.keys.Back):
			return m.back()
		case key.Matches(msg, m.keys.Enter):
			if m.cursor < len(m.tasks) {
				m.app.Nav.Navigate(navigation.TaskDetail{Token: m.token, TaskID: m.tasks[m.cursor].ID, FarmID: m.farmID})
				return m.remount()
			}
		}

	case navigation.ScreenTaskDetail:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m.back()
		case key.Matches(msg, m.keys.Complete):
			if m.task.ID != 0 && m.task.Status != agro.TaskCompleted {
				m.loading = true
				return m, completeTaskCmd(m.ctx, m.app.API, m.seq, m.task.ID)
			}
		}

	default:
		if key.Matches(msg, m.keys.Back) {
			return m.back()
		}
	}
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		m.focusInput((m.focus + 1) % len(m.inputs))
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		if m.focus == 0 {
			m.focusInput(1)
			return m, nil
		}
		if m.loading {
			return m, nil
		}
		m.loading, m.err = true, ""
		return m, loginCmd(m.ctx, m.app.Session, m.inputs[0].Value(), m.inputs[1].Value())
	}
	return m.updateInput(msg)
}

func (m Model) updateVerify(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.app.Session.CancelChallenge()
		return m, nil
	case key.Matches(msg, m.keys.Resend):
		return m, resendCmd(m.ctx, m.app.Session)
	case key.Matches(msg, m.keys.Enter):
		if m.loading {
			return m, nil
		}
		m.loading, m.err = true, ""
		return m, verifyCmd(m.ctx, m.app.Session, m.inputs[0].Value())
	}
	return m.updateInput(msg)
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus >= len(m.inputs) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) focusInput(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func loginInputs(email string) []textinput.Model {
	e := textinput.New()
	e.Prompt = "Email:    "
	e.PromptStyle = InputPromptStyle
	e.Placeholder = "you@farm.com"
	e.CharLimit = 254
	e.Width = 40
	e.SetValue(email)
	e.Focus()

	p := textinput.New()
	p.Prompt = "Password: "
	p.PromptStyle = InputPromptStyle
	p.EchoMode = textinput.EchoPassword
	p.CharLimit = 128
	p.Width = 40

	return []textinput.Model{e, p}
}

func codeInputs() []textinput.Model {
	c := textinput.New()
	c.Prompt = "Code: "
	c.PromptStyle = InputPromptStyle
	c.Placeholder = "123456"
	c.CharLimit = 8
	c.Width = 12
	c.Focus()
	return []textinput.Model{c}
}
