package command

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

// HashKeyCommand returns the hash-key command. It runs locally.
func HashKeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-key",
		Usage:     "Hash an API key for security.api_key_hash",
		ArgsUsage: "[KEY]",
		Description: "Hashes KEY with argon2id. With --generate a new random key is\n" +
			"created and printed with its hash. With neither, the key is read\n" +
			"from the first line of standard input.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "Generate a new random key",
			},
		},
		Action: hashKey,
	}
}

type hashKeyResult struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Hash   string `json:"api_key_hash" yaml:"api_key_hash"`
}

func hashKey(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	var (
		key       string
		generated bool
	)
	switch {
	case c.Bool("generate"):
		if c.NArg() > 0 {
			return errors.New("hash-key: KEY and --generate are mutually exclusive")
		}
		if key, err = domain.GenerateAPIKey(); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		generated = true
	case c.NArg() == 1:
		key = c.Args().First()
	case c.NArg() == 0:
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("hash-key: no key given")
		}
		key = strings.TrimRight(line, "\r\n")
	default:
		return requireArgs(c, 1)
	}

	if key == "" {
		return errors.New("hash-key: key must not be empty")
	}

	hash, err := domain.HashAPIKey(key)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}

	res := hashKeyResult{Hash: hash}
	if generated {
		res.APIKey = key
	}
	if env.Format != output.FormatText {
		return env.Print(res)
	}

	if generated {
		fmt.Fprintf(env.Out, "api_key: %s\n", key)
	}
	fmt.Fprintf(env.Out, "api_key_hash: %s\n", hash)
	return nil
}
