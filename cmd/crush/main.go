// Command crush is the process entrypoint: flag parsing and the three
// invocation modes (`-c "script"`, a file argument, and a bare REPL
// fallback), built on github.com/spf13/cobra.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/builtin"
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/config"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/exec"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/printer"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
	"github.com/spf13/cobra"
)

var scriptFlag string

// Parse turns script text into a JobList ready for plan.Lower. The
// concrete grammar/lexer/parser is an external collaborator;
// internal/ast is the contract such a frontend is assumed to target, so
// this var is the seam a real frontend plugs into without cmd/crush's own
// flag/session plumbing changing at all.
var Parse = func(source string) (ast.JobList, error) {
	return ast.JobList{}, crusherr.New(crusherr.InternalError, "no parser is wired into this build")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crush [file]",
		Short:         "a typed, tabular-stream interactive shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			switch {
			case scriptFlag != "":
				return sess.runAndReport(scriptFlag)
			case len(args) == 1:
				data, err := os.ReadFile(args[0])
				if err != nil {
					return crusherr.Wrap(crusherr.IOError, err, "reading %s", args[0])
				}
				return sess.runAndReport(string(data))
			default:
				return sess.repl()
			}
		},
	}
	root.Flags().StringVarP(&scriptFlag, "command", "c", "", "run script text and exit")
	return root
}

// session holds everything one process invocation needs to run one or more
// top-level jobs: the root scope with every builtin installed, the config
// watcher, and the GlobalState exit-code sink.
type session struct {
	root    *scope.Scope
	global  *command.GlobalState
	watcher *config.Watcher
}

func newSession() (*session, error) {
	root := scope.CreateRoot()
	if err := builtin.Install(root); err != nil {
		return nil, crusherr.Wrap(crusherr.InternalError, err, "installing builtins")
	}
	if err := config.SeedEnv(root); err != nil {
		return nil, crusherr.Wrap(crusherr.InternalError, err, "seeding environment")
	}

	global := command.NewGlobalState()
	root.SetGlobal(global)

	// A missing/unwatchable config directory never blocks startup.
	watcher, err := config.NewWatcher(func(settings config.Settings) {
		exec.SetStageCapacity(settings.StreamCapacity)
	})
	if err != nil {
		watcher = nil
	} else {
		exec.SetStageCapacity(watcher.Current().StreamCapacity)
	}

	return &session{root: root, global: global, watcher: watcher}, nil
}

func (s *session) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// runAndReport parses, runs, and prints source as a full program, then maps
// GlobalState's exit request (if any) onto the process exit code.
func (s *session) runAndReport(source string) error {
	v, err := s.runOne(source)
	if err != nil {
		return err
	}
	if err := s.print(v); err != nil {
		return err
	}
	if code, requested := s.global.ExitCode(); requested && code != 0 {
		os.Exit(code)
	}
	return nil
}

func (s *session) runOne(source string) (value.Value, error) {
	jobs, err := Parse(source)
	if err != nil {
		return nil, err
	}
	p, err := plan.Lower(jobs)
	if err != nil {
		return nil, err
	}
	return exec.RunProgram(s.root, p, s.global)
}

// print hands the tail value to the printer; an Empty result (assignments,
// control flow run for effect) produces no output at all.
func (s *session) print(v value.Value) error {
	if _, empty := v.(value.Empty); empty {
		return nil
	}
	return printer.Print(os.Stdout, v)
}

// repl is the bare fallback mode: no flags, no file argument. The line
// editor, prompt, and tab completion live outside the execution core; this
// reads whole lines from stdin with bufio.Scanner, prints each result, and
// keeps going past a single line's error the way an interactive shell
// survives a failed command.
func (s *session) repl() error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "crush> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stdout)
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		v, err := s.runOne(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := s.print(v); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if code, requested := s.global.ExitCode(); requested {
			os.Exit(code)
		}
	}
}
