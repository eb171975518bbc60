// Package shell runs the external build tools (make, git, ...) through a
// POSIX shell interpreter so command lines behave the same on every platform
// and can be logged before they execute.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// Runner executes command lines in a fixed directory with a fixed environment
// overlay. Scripts run with -e semantics: the first failing command aborts.
type Runner struct {
	Dir string
	// Env entries override the inherited process environment.
	Env map[string]string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// DryRun only prints the commands Run would execute. Output ignores it
	// since queries don't modify anything.
	DryRun bool
}

func (r *Runner) environ() expand.Environ {
	envVars := os.Environ()

	for name, value := range r.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// Run executes the given script one statement at a time. Every statement is
// logged before it runs; name tags the emitted events.
func (r *Runner) Run(ctx context.Context, name, script string) error {
	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return r.exec(ctx, name, script, stdout, r.DryRun)
}

// Output executes the given script with stdout captured and returns whatever
// it printed. Meant for query commands like `git remote`.
func (r *Runner) Output(ctx context.Context, name, script string) (string, error) {
	buf := bytes.Buffer{}
	err := r.exec(ctx, name, script, &buf, false)
	return buf.String(), err
}

func (r *Runner) exec(ctx context.Context, name, script string, stdout io.Writer, dryRun bool) error {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(script), name)
	if err != nil {
		return eris.Wrap(err, "failed to parse shell script")
	}

	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(r.Dir),
		interp.Env(r.environ()),
		interp.ExecHandler(defaultExecHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for _, stm := range file.Stmts {
		strBuffer.Reset()
		printer.Print(&strBuffer, stm)
		term.Log(ctx).Info().
			Str("stage", name).
			Bool("command", true).
			Msg(strBuffer.String())

		if dryRun {
			continue
		}

		err = runner.Run(ctx, stm)
		if err != nil {
			return err
		}

		if runner.Exited() {
			return nil
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

// ExitCode extracts the exit status carried by an error returned from Run.
// It returns 0 for nil and -1 for errors that didn't come from a command.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if status, ok := interp.IsExitStatus(err); ok {
		return int(status)
	}

	if status, ok := interp.IsExitStatus(eris.Cause(err)); ok {
		return int(status)
	}

	return -1
}
