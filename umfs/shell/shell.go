// Package shell implements the interactive undo shell: a line-oriented loop
// that undoes, redoes and inspects history, and runs any other line as a
// command against the mounted filesystem with its effects grouped into a
// single undo unit.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/interfaces"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/ports"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"

	"github.com/rs/zerolog"
)

// Target is what the shell drives.
type Target interface {
	interfaces.JournalControl
	Snapshot() map[string]store.Entry
}

// Runner executes one command line.
type Runner interface {
	Run(ctx context.Context, command string) error
}

// ExecRunner runs command lines through "sh -c" inside Dir.
type ExecRunner struct {
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// Shell reads commands and dispatches them.
type Shell struct {
	target Target
	runner Runner
	ui     ports.Interactor
	logger zerolog.Logger

	prompt    string
	promptOut io.Writer
}

// Option configures a Shell.
type Option func(*Shell)

// WithPrompt prints prompt to w before each line is read.
func WithPrompt(prompt string, w io.Writer) Option {
	return func(s *Shell) { s.prompt, s.promptOut = prompt, w }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Shell) { s.logger = logger }
}

func New(target Target, runner Runner, ui ports.Interactor, opts ...Option) *Shell {
	s := &Shell{
		target:    target,
		runner:    runner,
		ui:        ui,
		logger:    zerolog.Nop(),
		promptOut: io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "shell").Logger()
	return s
}

// Run reads lines from in until "quit", "exit", end of input or ctx is
// cancelled. Only a read error is returned.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(s.promptOut, s.prompt)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if !s.Execute(ctx, line) {
				return nil
			}
		}
	}
}

// Execute handles one line and reports whether the loop should continue.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	command := strings.TrimSpace(line)
	switch command {
	case "":
	case "quit", "exit":
		s.logger.Info().Msg("Shell exiting")
		return false
	case "undo":
		s.move("undo", s.target.Undo)
	case "redo":
		s.move("redo", s.target.Redo)
	case "stack":
		s.ui.Output(s.describe())
	default:
		s.run(ctx, command)
	}
	return true
}

func (s *Shell) move(direction string, fn func() (journal.Batch, error)) {
	b, err := fn()
	switch {
	case errors.Is(err, journal.ErrNothingToUndo), errors.Is(err, journal.ErrNothingToRedo):
		s.ui.Warning(err.Error())
	case err != nil:
		s.ui.Error(direction+" failed", err)
	default:
		s.ui.Output(direction + ": " + b.Description())
	}
}

// run executes command through the runner, folding every filesystem change
// it causes into one batch labelled with the command text.
func (s *Shell) run(ctx context.Context, command string) {
	err := s.target.Group(command, func() error {
		return s.runner.Run(ctx, command)
	})
	if err == nil {
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		s.ui.Warning(fmt.Sprintf("%q exited with status %d", command, exitErr.ExitCode()))
		return
	}
	s.ui.Error("command failed", err)
}

// describe renders the journal stacks followed by the size of every entry
// that holds content.
func (s *Shell) describe() string {
	var sb strings.Builder
	sb.WriteString(s.target.History().String())

	snap := s.target.Snapshot()
	paths := make([]string, 0, len(snap))
	for p, e := range snap {
		if e.HasContent {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	fmt.Fprintf(&sb, "content (%d):\n", len(paths))
	for _, p := range paths {
		fmt.Fprintf(&sb, "  %s %d bytes\n", p, len(snap[p].Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Stdio returns an ExecRunner writing to the process's stdout and stderr.
// Commands get no stdin: the shell's own line reader owns it.
func Stdio(dir string) ExecRunner {
	return ExecRunner{Dir: dir, Stdout: os.Stdout, Stderr: os.Stderr}
}
