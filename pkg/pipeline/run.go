package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/shell"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// RunOptions bundles the inputs for one pipeline run.
type RunOptions struct {
	Env   Environment
	Paths PathSet

	// Runner executes the build commands. When nil, Run constructs a shell
	// runner in the source directory with the derived make environment.
	Runner CommandRunner

	// Stdout and Stderr receive the build tool output when Runner is nil.
	Stdout io.Writer
	Stderr io.Writer

	DryRun bool

	// Now supplies timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Run executes the fixed stage sequence clean -> compile -> collect -> package
// and aborts on the first failure. Later stages never run after a failed one.
// The returned RunResult carries whatever completed, even on failure.
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	cfg, id := Configure(opts.Env, start)

	sh := opts.Runner
	if sh == nil {
		sh = &shell.Runner{
			Dir:    opts.Paths.Source,
			Env:    cfg.MakeEnv(),
			Stdout: opts.Stdout,
			Stderr: opts.Stderr,
			DryRun: opts.DryRun,
		}
	}

	term.Log(ctx).Info().Msgf("Building %s with %d jobs", id.Archive, cfg.Jobs)

	result := &RunResult{}

	if opts.DryRun {
		// print the build commands without touching anything
		for _, script := range []string{cleanScript(cfg), configScript(cfg), buildScript(cfg)} {
			if err := sh.Run(ctx, "dry", script); err != nil {
				return result, err
			}
		}

		term.Log(ctx).Info().Msgf("Dry run, would collect %s and produce %s", cfg.BootImage(opts.Paths), id.Archive)
		result.Elapsed = now().Sub(start)
		return result, nil
	}

	step := func(stage Stage, fn func() error) error {
		began := now()
		err := fn()

		res := StageResult{Stage: stage, Duration: now().Sub(began)}
		if err != nil {
			res.ExitCode = -1

			var failure *StageFailure
			if errors.As(err, &failure) {
				res.ExitCode = failure.ExitCode
			}
		}
		result.Stages = append(result.Stages, res)

		if err != nil {
			result.Elapsed = now().Sub(start)
		}
		return err
	}

	err := step(StageClean, func() error { return Clean(ctx, sh, cfg, opts.Paths) })
	if err != nil {
		return result, err
	}

	err = step(StageCompile, func() error { return Compile(ctx, sh, cfg) })
	if err != nil {
		return result, err
	}

	err = step(StageCollect, func() error { return Collect(ctx, cfg, opts.Paths) })
	if err != nil {
		return result, err
	}

	err = step(StagePackage, func() error {
		archive, err := Package(ctx, opts.Paths, id)
		result.Archive = archive
		return err
	})
	if err != nil {
		return result, err
	}

	newest, err := NewestFile(opts.Paths.Dist)
	if err != nil {
		term.Log(ctx).Warn().Err(err).Msgf("Failed to inspect %s", opts.Paths.Dist)
	} else {
		result.Newest = newest
	}

	result.Elapsed = now().Sub(start)
	term.Log(ctx).Info().Msgf("Produced %s in %s", result.Archive, FormatElapsed(result.Elapsed))

	return result, nil
}

// NewestFile returns the most recently modified file in the given directory.
func NewestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrapf(err, "failed to read %s", dir)
	}

	newest := ""
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return "", eris.Wrapf(err, "failed to check %s", entry.Name())
		}

		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", eris.Errorf("no files in %s", dir)
	}
	return newest, nil
}

// FormatElapsed renders a duration the way the final summary prints it.
func FormatElapsed(elapsed time.Duration) string {
	seconds := int(elapsed.Round(time.Second).Seconds())
	return fmt.Sprintf("%d minute(s) and %d second(s)", seconds/60, seconds%60)
}
