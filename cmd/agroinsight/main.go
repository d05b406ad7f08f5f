// Command agroinsight is the terminal client for AgroInsight. Every
// subcommand restores the stored session before it runs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/logging"
)

const usage = `usage: agroinsight <command> [flags]

commands:
  status                       show the session state
  login  [-email] [-password]  sign in; prompts for the emailed code
  logout                       sign out and forget the stored token
  whoami                       show the signed-in profile
  farms                        list your farms
  tasks  [-farm id]            list the tasks of a farm
  complete -task id            mark a task completed
  report [-farm id] [-from YYYY-MM-DD] [-to YYYY-MM-DD]
                               summarise a farm's costs
  pest   -plot id -image path  classify a leaf photo
  tui                          open the interactive terminal app
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code. Logs go to
// stderr so stdout stays scriptable.
func run(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	logger := logging.NewWithWriter(stderr, cfg.LogLevel)
	cli := &cli{cfg: cfg, logger: logger, in: newPrompter(stdin, stdout), out: stdout}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err := cmd(ctx, cli, args[1:]); err != nil {
		fmt.Fprintln(stderr, "error:", describe(err))
		logger.Debug("command failed", "command", args[0], "error", err)
		return 1
	}
	return 0
}
