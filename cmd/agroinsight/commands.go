package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/app"
	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/logging"
	"github.com/agro-insight/agroinsight/internal/session"
	"github.com/agro-insight/agroinsight/internal/tui"
	"github.com/agro-insight/agroinsight/internal/validation"
)

const (
	dateLayout   = "2006-01-02"
	maxCodeTries = 5
	logFileName  = "agroinsight.log"
)

var errNotSignedIn = errors.New("not signed in; run agroinsight login")

type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]command{
	"status":   statusCmd,
	"login":    loginCmd,
	"logout":   logoutCmd,
	"whoami":   whoamiCmd,
	"farms":    farmsCmd,
	"tasks":    tasksCmd,
	"complete": completeCmd,
	"report":   reportCmd,
	"pest":     pestCmd,
	"tui":      tuiCmd,
}

type cli struct {
	cfg    config.Config
	logger *slog.Logger
	in     *prompter
	out    io.Writer
}

// open wires the client and restores the stored session. A stored token the
// backend no longer accepts leaves the client signed out without failing.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	if _, err := a.Start(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// signedIn is open for commands that need a session.
func (c *cli) signedIn(ctx context.Context) (*app.App, session.Session, error) {
	a, err := c.open(ctx)
	if err != nil {
		return nil, session.Session{}, err
	}
	sess, ok := a.Session.Session()
	if !ok {
		_ = a.Close()
		return nil, session.Session{}, errNotSignedIn
	}
	return a, sess, nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func describe(err error) string {
	if errors.Is(err, flag.ErrHelp) {
		return "see agroinsight with no arguments for usage"
	}
	return gateway.UserMessage(err)
}

func render(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tui.DimStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tui.TitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func statusCmd(ctx context.Context, c *cli, args []string) error {
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	c.printf("state: %s\n", a.Session.State())
	if screen, ok := a.Nav.Current(); ok {
		c.printf("screen: %s\n", screen.Title())
	}
	if sess, ok := a.Session.Session(); ok {
		c.printf("user: %s\n", sess.Email)
		if !sess.ExpiresAt.IsZero() {
			c.printf("expires: %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
		}
	}
	return nil
}

func loginCmd(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if sess, ok := a.Session.Session(); ok {
		return fmt.Errorf("already signed in as %s; run agroinsight logout first", sess.Email)
	}
	if *email == "" {
		if *email, err = c.in.ask("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = c.in.ask("Password: "); err != nil {
			return err
		}
	}
	if err := a.Session.Login(ctx, *email, *password); err != nil {
		return err
	}
	c.printf("We sent a code to %s.\n", a.Session.PendingEmail())

	for tries := 0; tries < maxCodeTries; {
		code, err := c.in.ask("Code (r to resend): ")
		if err != nil {
			a.Session.CancelChallenge()
			return fmt.Errorf("no code entered: %w", err)
		}
		if strings.EqualFold(code, "r") {
			if err := a.Session.ResendCode(ctx); err != nil {
				c.printf("%s\n", describe(err))
				continue
			}
			c.printf("A new code is on its way.\n")
			continue
		}

		sess, err := a.Session.Verify(ctx, code)
		if err == nil {
			c.printf("Signed in as %s.\n", displayName(sess))
			return nil
		}
		if !retryable(err) {
			return err
		}
		tries++
		c.printf("%s\n", describe(err))
	}
	a.Session.CancelChallenge()
	return errors.New("too many wrong codes")
}

// retryable reports whether a failed code submission may be tried again.
func retryable(err error) bool {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return true
	}
	status := gateway.StatusCode(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}

func displayName(s session.Session) string {
	name := s.Name
	if name == "" {
		name = s.Email
	}
	if s.Role != "" {
		return name + " (" + s.Role + ")"
	}
	return name
}

func logoutCmd(ctx context.Context, c *cli, args []string) error {
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Session.State() != session.Authenticated {
		c.printf("Not signed in.\n")
		return nil
	}
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	c.printf("Signed out.\n")
	return nil
}

func whoamiCmd(ctx context.Context, c *cli, args []string) error {
	a, _, err := c.signedIn(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	me, err := a.API.Me(ctx)
	if err != nil {
		return err
	}
	farm := ""
	if me.FarmID != 0 {
		farm = strconv.FormatInt(me.FarmID, 10)
	}
	c.printf("%s\n", render(
		[]string{"Name", "Email", "Role", "Farm"},
		[][]string{{me.Name(), me.Email, me.Role, farm}},
	))
	return nil
}

func farmsCmd(ctx context.Context, c *cli, args []string) error {
	a, _, err := c.signedIn(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	farms, err := a.API.ListFarms(ctx)
	if err != nil {
		return err
	}
	if len(farms) == 0 {
		c.printf("No farms yet.\n")
		return nil
	}
	rows := make([][]string, 0, len(farms))
	for _, f := range farms {
		rows = append(rows, []string{strconv.FormatInt(f.ID, 10), f.Name, f.Location, strconv.FormatFloat(f.AreaHa, 'f', 1, 64)})
	}
	c.printf("%s\n", render([]string{"ID", "Name", "Location", "Area (ha)"}, rows))
	return nil
}

// farmOrDefault picks the requested farm, the session's farm, or the first
// visible farm, in that order.
func farmOrDefault(ctx context.Context, a *app.App, sess session.Session, requested int64) (int64, error) {
	if requested != 0 {
		return requested, nil
	}
	if sess.FarmID != 0 {
		return sess.FarmID, nil
	}
	farms, err := a.API.ListFarms(ctx)
	if err != nil {
		return 0, err
	}
	if len(farms) == 0 {
		return 0, errors.New("no farm available; pass -farm")
	}
	return farms[0].ID, nil
}

func tasksCmd(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("tasks")
	farmID := fs.Int64("farm", 0, "farm id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, sess, err := c.signedIn(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := farmOrDefault(ctx, a, sess, *farmID)
	if err != nil {
		return err
	}
	tasks, err := a.API.ListTasks(ctx, id)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		c.printf("Nothing to do on farm %d.\n", id)
		return nil
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Title, string(t.Status), t.DueDate, t.AssigneeID})
	}
	c.printf("%s\n", render([]string{"ID", "Task", "Status", "Due", "Assignee"}, rows))
	return nil
}

func completeCmd(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("complete")
	taskID := fs.Int64("task", 0, "task id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *taskID <= 0 {
		return errors.New("-task is required")
	}

	a, _, err := c.signedIn(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	task, err := a.API.CompleteTask(ctx, *taskID)
	if err != nil {
		return err
	}
	c.printf("%s is %s.\n", task.Title, task.Status)
	return nil
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

func reportCmd(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("report")
	farmID := fs.Int64("farm", 0, "farm id")
	fromFlag := fs.String("from", "", "first day, YYYY-MM-DD")
	toFlag := fs.String("to", "", "last day, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	from, err := parseDate("from", *fromFlag)
	if err != nil {
		return err
	}
	to, err := parseDate("to", *toFlag)
	if err != nil {
		return err
	}

	a, sess, err := c.signedIn(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := farmOrDefault(ctx, a, sess, *farmID)
	if err != nil {
		return err
	}
	report, err := a.API.FinancialReport(ctx, id, from, to)
	if err != nil {
		return err
	}

	categories := make([]string, 0, len(report.ByCategory))
	for cat := range report.ByCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	rows := make([][]string, 0, len(categories)+1)
	for _, cat := range categories {
		rows = append(rows, []string{cat, money(report.ByCategory[cat])})
	}
	rows = append(rows, []string{"total", money(report.TotalCost)})
	c.printf("Farm %d costs (%s)\n%s\n", id, period(report), render([]string{"Category", report.Currency}, rows))
	return nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func period(r agro.FinancialReport) string {
	switch {
	case r.From == "" && r.To == "":
		return "all time"
	case r.From == "":
		return "until " + r.To
	case r.To == "":
		return "since " + r.From
	}
	return r.From + " to " + r.To
}

func pestCmd(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("pest")
	plotID := fs.Int64("plot", 0, "plot id")
	image := fs.String("image", "", "path or file:// URI of the photo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *plotID <= 0 {
		return errors.New("-plot is required")
	}

	a, _, err := c.signedIn(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.API.DetectPest(ctx, *plotID, *image)
	if err != nil {
		return err
	}
	verdict := tui.ErrorStyle.Render(result.Label)
	if result.Healthy {
		verdict = tui.SuccessStyle.Render(result.Label)
	}
	c.printf("%s (%.0f%% confidence)\n", verdict, result.Confidence*100)
	if result.Recommendation != "" {
		c.printf("%s\n", result.Recommendation)
	}
	return nil
}

// tuiCmd runs the interactive app. Logs go to a file in the data dir since
// the terminal belongs to the program.
func tuiCmd(ctx context.Context, c *cli, args []string) error {
	if err := os.MkdirAll(c.cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(c.cfg.DataDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	a, err := app.New(ctx, c.cfg, logging.NewWithWriter(logFile, c.cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()

	p := tea.NewProgram(tui.New(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// prompter reads answers line by line.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}
