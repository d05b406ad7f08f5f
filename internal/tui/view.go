package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/navigation"
)

// View renders the mounted screen, with the drawer beside it when open.
func (m Model) View() string {
	var content strings.Builder
	content.WriteString(LogoStyle.Render("AgroInsight"))
	if m.screen != "" {
		content.WriteString(DimStyle.Render(" · " + m.screen.Title()))
	}
	content.WriteString("\n\n")

	switch {
	case m.screen == "" && m.loading:
		content.WriteString(m.spinner.View() + " Restoring your session...")
	case m.mount.Failed():
		content.WriteString(ErrorStyle.Render(m.mount.Message))
		content.WriteString("\n\n")
		content.WriteString(DimStyle.Render("esc back - ctrl+c quit"))
	default:
		content.WriteString(m.screenView())
	}

	if m.notice != "" {
		content.WriteString("\n\n" + SuccessStyle.Render(m.notice))
	}
	if m.err != "" {
		content.WriteString("\n\n" + ErrorStyle.Render(m.err))
	}

	body := BoxStyle.Render(content.String())
	if m.app.Nav.DrawerOpen() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.drawerView(), body)
	}
	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) screenView() string {
	switch m.screen {
	case navigation.ScreenLogin:
		return m.formView("Sign in to your farm", "tab next field - enter sign in - ctrl+c quit")
	case navigation.ScreenVerifyCode:
		return m.formView("Enter the code from your email", "enter verify - ctrl+r resend - esc start over")
	case navigation.ScreenFarmList:
		return m.farmListView()
	case navigation.ScreenTaskList:
		return m.taskListView()
	case navigation.ScreenTaskDetail:
		return m.taskDetailView()
	}
	return ""
}

func (m Model) formView(title, help string) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if m.loading {
		b.WriteString("\n" + m.spinner.View() + " Working...")
	}
	b.WriteString("\n" + DimStyle.Render(help))
	return b.String()
}

func (m Model) listLine(i int, text string) string {
	if i == m.cursor {
		return SelectedStyle.Render("> " + text)
	}
	return ItemStyle.Render("  " + text)
}

func (m Model) farmListView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Your farms"))
	b.WriteString("\n\n")
	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading farms...")
	case len(m.farms) == 0:
		b.WriteString(DimStyle.Render("No farms yet."))
	default:
		for i, f := range m.farms {
			b.WriteString(m.listLine(i, f.Name) + DimStyle.Render(fmt.Sprintf(" %s · %.1f ha", f.Location, f.AreaHa)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n" + DimStyle.Render("↑/↓ move - enter tasks - r refresh - m menu"))
	return b.String()
}

func statusStyle(s agro.TaskStatus) lipgloss.Style {
	switch s {
	case agro.TaskCompleted:
		return TaskCompleteStyle
	case agro.TaskInProgress:
		return TaskInProgressStyle
	default:
		return TaskPendingStyle
	}
}

func (m Model) taskListView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Tasks"))
	b.WriteString("\n\n")
	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading tasks...")
	case len(m.tasks) == 0:
		b.WriteString(DimStyle.Render("Nothing to do on this farm."))
	default:
		for i, t := range m.tasks {
			b.WriteString(m.listLine(i, t.Title) + " " + statusStyle(t.Status).Render(string(t.Status)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n" + DimStyle.Render("↑/↓ move - enter open - r refresh - esc back - m menu"))
	return b.String()
}

func (m Model) taskDetailView() string {
	if m.task.ID == 0 {
		if m.loading {
			return m.spinner.View() + " Loading task..."
		}
		return DimStyle.Render("esc back")
	}
	t := m.task
	var b strings.Builder
	b.WriteString(TitleStyle.Render(t.Title))
	b.WriteString("\n\n")
	b.WriteString("Status:   " + statusStyle(t.Status).Render(string(t.Status)) + "\n")
	if t.DueDate != "" {
		b.WriteString("Due:      " + t.DueDate + "\n")
	}
	if t.AssigneeID != "" {
		b.WriteString("Assignee: " + t.AssigneeID + "\n")
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	if m.loading {
		b.WriteString("\n" + m.spinner.View() + " Saving...")
	}
	help := "esc back - m menu"
	if t.Status != agro.TaskCompleted {
		help = "c complete - " + help
	}
	b.WriteString("\n" + DimStyle.Render(help))
	return b.String()
}

func (m Model) drawerView() string {
	var b strings.Builder
	if s, ok := m.app.Session.Session(); ok {
		b.WriteString(TitleStyle.Render(s.Name))
		b.WriteString("\n" + DimStyle.Render(s.Email))
		if s.Role != "" {
			b.WriteString("\n" + DimStyle.Render(s.Role))
		}
		b.WriteString("\n\n")
	}
	b.WriteString("l  sign out\n")
	b.WriteString(DimStyle.Render("esc close"))
	return DrawerStyle.Render(b.String())
}
