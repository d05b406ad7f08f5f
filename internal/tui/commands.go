package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/app"
	"github.com/agro-insight/agroinsight/internal/session"
)

func startCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		_, err := a.Start(ctx)
		return startedMsg{err: err}
	}
}

// waitForChange blocks on the next session change. It is re-issued after
// every changeMsg.
func waitForChange(ch <-chan app.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

func loginCmd(ctx context.Context, s *session.Controller, email, password string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{err: s.Login(ctx, email, password)}
	}
}

func verifyCmd(ctx context.Context, s *session.Controller, code string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Verify(ctx, code)
		return actionMsg{err: err}
	}
}

func resendCmd(ctx context.Context, s *session.Controller) tea.Cmd {
	return func() tea.Msg {
		if err := s.ResendCode(ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{notice: "A new code is on its way."}
	}
}

func logoutCmd(ctx context.Context, s *session.Controller) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{err: s.Logout(ctx)}
	}
}

func loadFarmsCmd(ctx context.Context, api *agro.Client, seq int) tea.Cmd {
	return func() tea.Msg {
		farms, err := api.ListFarms(ctx)
		return farmsMsg{seq: seq, farms: farms, err: err}
	}
}

func loadTasksCmd(ctx context.Context, api *agro.Client, seq int, farmID int64) tea.Cmd {
	return func() tea.Msg {
		tasks, err := api.ListTasks(ctx, farmID)
		return tasksMsg{seq: seq, tasks: tasks, err: err}
	}
}

func loadTaskCmd(ctx context.Context, api *agro.Client, seq int, taskID int64) tea.Cmd {
	return func() tea.Msg {
		task, err := api.GetTask(ctx, taskID)
		return taskMsg{seq: seq, task: task, err: err}
	}
}

func completeTaskCmd(ctx context.Context, api *agro.Client, seq int, taskID int64) tea.Cmd {
	return func() tea.Msg {
		task, err := api.CompleteTask(ctx, taskID)
		return taskMsg{seq: seq, task: task, err: err}
	}
}
