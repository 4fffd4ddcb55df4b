package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPrompt is printed before each line.
const DefaultPrompt = "kvmesh> "

// ErrUnterminatedQuote is returned by Split for an unclosed quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Executor runs one command line split into words.
type Executor func(ctx context.Context, args []string) error

// Config configures a REPL.
type Config struct {
	Input  io.Reader
	Output io.Writer
	Prompt string
	Exec   Executor

	// History is optional; when nil nothing is remembered.
	History *History

	// Commands are the top-level command names, used for suggestions.
	Commands []string
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// New creates a new REPL instance.
func New(cfg Config) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &REPL{
		input:     cfg.Input,
		output:    cfg.Output,
		prompt:    cfg.Prompt,
		exec:      cfg.Exec,
		completer: NewCompleter(cfg.Commands...),
		history:   cfg.History,
	}
}

// Run reads lines until exit, quit, EOF or ctx is canceled. Command
// errors are printed and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	reader := bufio.NewReader(r.input)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		if r.history != nil {
			r.history.Add(line)
		}

		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}

		if eof {
			return nil
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	args, err := Split(line)
	if err != nil {
		return err
	}

	if !r.completer.Known(args[0]) {
		msg := fmt.Sprintf("unknown command %q", args[0])
		if s := r.completer.Complete(args[0]); len(s) > 0 {
			msg += ", did you mean: " + strings.Join(s, ", ")
		}
		return errors.New(msg)
	}
	return r.exec(ctx, args)
}

// Split breaks line into words. Quotes group words and are removed;
// a backslash escapes the next character inside double quotes and
// outside quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, c := range line {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case c == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteRune(c)
			}
		case c == '"' || c == '\'':
			quote = c
			inWord = true
		case c == ' ' || c == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(c)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
