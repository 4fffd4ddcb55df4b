package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/output"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under KEY",
		ArgsUsage: "KEY",
		Action:    kvGet,
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store VALUE under KEY",
		ArgsUsage: "KEY VALUE",
		Action:    kvSet,
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"del"},
		Usage:     "Remove KEY; removing a missing key succeeds",
		ArgsUsage: "KEY",
		Action:    kvDelete,
	}
}

func kvGet(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	kv, err := env.Client.Get(commandContext(c), c.Args().First())
	if err != nil {
		return err
	}
	if env.Format == output.FormatText {
		return env.Print(kv.Value)
	}
	return env.Print(kv)
}

func kvSet(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	kv, err := env.Client.Set(commandContext(c), c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	if env.Format == output.FormatText {
		return env.Print("OK")
	}
	return env.Print(kv)
}

func kvDelete(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	key := c.Args().First()
	if err := env.Client.Delete(commandContext(c), key); err != nil {
		return err
	}
	if env.Format == output.FormatText {
		return env.Print("OK")
	}
	return env.Print(map[string]string{"key": key})
}
