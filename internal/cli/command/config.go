package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/config"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	serverconfig "github.com/yndnr/kvmesh-go/internal/server/config"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI and server configuration helpers",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective CLI configuration",
				Action: configShow,
			},
			{
				Name:  "save",
				Usage: "Write the effective CLI configuration to the config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Destination (default: --config or ~/.kvmesh/cli.yaml)",
					},
				},
				Action: configSave,
			},
			{
				Name:      "check",
				Usage:     "Validate a kvmesh-server configuration file",
				ArgsUsage: "FILE",
				Action:    configCheck,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	shown := *env.Config
	shown.APIKey = logger.Redact(shown.APIKey)
	return env.Print(&shown)
}

func configSave(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	path := c.String("path")
	if path == "" {
		path = env.ConfigPath
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if err := config.Save(env.Config, path); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "configuration written to %s\n", path)
	return nil
}

func configCheck(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	cfg, err := serverconfig.Load(c.Args().First())
	if err != nil {
		return err
	}
	if env.Format == output.FormatText {
		fmt.Fprintf(env.Out, "%s: configuration is valid\n", c.Args().First())
		return nil
	}
	return env.Print(serverconfig.Sanitize(cfg))
}
