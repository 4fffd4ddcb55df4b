package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/config"
	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

const envKey = "env"

// Env is the resolved invocation state shared by all commands.
type Env struct {
	Config     *config.CLIConfig
	ConfigPath string
	Client     *connection.HTTPClient
	Format     output.Format
	Out        io.Writer

	// interactive is set while running inside the shell.
	interactive bool
}

// Print renders data in the selected format.
func (e *Env) Print(data any) error {
	return output.NewFormatter(e.Format).Format(e.Out, data)
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "kvmesh-cli",
		Usage:                "kvmesh command-line client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			DeleteCommand(),
			StatusCommand(),
			SnapshotCommand(),
			HealthCommand(),
			ReadyCommand(),
			HashKeyCommand(),
			ConfigCommand(),
			ShellCommand(),
		},
		Before: setupEnv,
	}
}

// globalFlags returns the global CLI flags. Unset flags fall back to the
// CLI config file.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file (default: ~/.kvmesh/cli.yaml)",
			EnvVars: []string{"KVMESH_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "kvmesh server URL",
			EnvVars: []string{"KVMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "API key for authentication",
			EnvVars: []string{"KVMESH_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, json, yaml",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "PEM CA bundle for https servers",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
	}
}

// setupEnv loads the config file, applies flags over it and builds the
// client. An Env already present in Metadata is kept.
func setupEnv(c *cli.Context) error {
	if _, ok := c.App.Metadata[envKey].(*Env); ok {
		return nil
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("server") {
		cfg.Server = c.String("server")
	}
	if c.IsSet("api-key") {
		cfg.APIKey = c.String("api-key")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("ca-file") {
		cfg.CAFile = c.String("ca-file")
	}
	if c.IsSet("insecure") {
		cfg.Insecure = c.Bool("insecure")
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	client, err := connection.NewHTTPClient(connection.ClientConfig{
		Server:   cfg.Server,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout,
		CAFile:   cfg.CAFile,
		Insecure: cfg.Insecure,
	})
	if err != nil {
		return err
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}

	c.App.Metadata[envKey] = &Env{
		Config:     cfg,
		ConfigPath: c.String("config"),
		Client:     client,
		Format:     format,
		Out:        out,
	}
	return nil
}

// GetEnv retrieves the Env from context.
func GetEnv(c *cli.Context) (*Env, error) {
	if env, ok := c.App.Metadata[envKey].(*Env); ok {
		return env, nil
	}
	return nil, errors.New("cli environment not initialized")
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s) %s, got %d",
			c.Command.Name, n, c.Command.ArgsUsage, c.NArg())
	}
	return nil
}

// commandContext returns the context for a request.
func commandContext(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
