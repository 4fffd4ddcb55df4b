package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"repl"},
		Usage:   "Run commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file (default: ~/.kvmesh/history, \"\" disables)",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	if env.interactive {
		return errors.New("shell: already in a shell")
	}

	history := repl.NewHistory(c.String("history"), 0)
	if err := history.Load(); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: load history: %v\n", err)
	}

	var names []string
	for _, cmd := range c.App.Commands {
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}

	shellEnv := *env
	shellEnv.interactive = true

	r := repl.New(repl.Config{
		Input:    c.App.Reader,
		Output:   env.Out,
		History:  history,
		Commands: names,
		Exec: func(ctx context.Context, args []string) error {
			return runLine(ctx, c.App, &shellEnv, args)
		},
	})

	runErr := r.Run(commandContext(c))
	if err := history.Save(); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: save history: %v\n", err)
	}
	return runErr
}

// runLine runs one shell line as a fresh App sharing env.
func runLine(ctx context.Context, parent *cli.App, env *Env, args []string) error {
	app := App()
	app.Reader = parent.Reader
	app.Writer = env.Out
	app.ErrWriter = parent.ErrWriter
	app.Metadata = map[string]any{envKey: env}
	app.HideVersion = true
	app.ExitErrHandler = func(*cli.Context, error) {}

	return app.RunContext(ctx, append([]string{app.Name}, args...))
}
