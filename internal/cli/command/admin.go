package command

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/output"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show server status and shard occupancy",
		Action: adminStatus,
	}
}

// SnapshotCommand returns the snapshot command.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:   "snapshot",
		Usage:  "Write a snapshot on the server now",
		Action: adminSnapshot,
	}
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check server liveness",
		Action: probe("/health"),
	}
}

// ReadyCommand returns the ready command.
func ReadyCommand() *cli.Command {
	return &cli.Command{
		Name:   "ready",
		Usage:  "Check whether the server finished recovery",
		Action: probe("/ready"),
	}
}

func adminStatus(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	st, err := env.Client.Status(commandContext(c))
	if err != nil {
		return err
	}
	if env.Format != output.FormatText {
		return env.Print(st)
	}

	summary := &output.Table{}
	summary.AddRow("Server:", env.Client.BaseURL())
	summary.AddRow("Status:", st.Status)
	summary.AddRow("Ready:", strconv.FormatBool(st.Ready))
	summary.AddRow("Entries:", fmt.Sprintf("%d / %d", st.Entries, st.Capacity))
	summary.AddRow("Uptime:", (time.Duration(st.UptimeSeconds) * time.Second).String())
	summary.AddRow("Version:", st.Build.Version)
	if r := st.Replication; r != nil && r.Enabled {
		summary.AddRow("Replication:", fmt.Sprintf("queued=%d sent=%d failed=%d dropped=%d",
			r.Queued, r.Sent, r.Failed, r.Dropped))
	} else {
		summary.AddRow("Replication:", "disabled")
	}
	if err := summary.Render(env.Out); err != nil {
		return err
	}

	fmt.Fprintln(env.Out)
	shards := &output.Table{Headers: []string{"SHARD", "ACTIVE", "CAPACITY"}}
	for i, s := range st.Shards {
		shards.AddRow(strconv.Itoa(i), strconv.Itoa(s.Active), strconv.Itoa(s.Capacity))
	}
	return shards.Render(env.Out)
}

func adminSnapshot(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	info, err := env.Client.Snapshot(commandContext(c))
	if err != nil {
		return err
	}
	if env.Format == output.FormatText {
		return env.Print(fmt.Sprintf("snapshot written: %s (%d entries, %d bytes)",
			info.Path, info.Entries, info.Size))
	}
	return env.Print(info)
}

func probe(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := GetEnv(c)
		if err != nil {
			return err
		}

		p, err := env.Client.Probe(commandContext(c), path)
		if err != nil {
			return err
		}
		if env.Format == output.FormatText {
			return env.Print(p.Status)
		}
		return env.Print(p)
	}
}
