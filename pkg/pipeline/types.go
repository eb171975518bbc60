// Package pipeline drives the kernel build: clean, compile, collect the boot
// image, and package it into a flashable archive. Stages run strictly in that
// order and the first failure aborts the run.
package pipeline

import (
	"context"
	"path/filepath"
	"time"
)

// Stage names one step of the build pipeline.
type Stage string

const (
	StageClean   Stage = "clean"
	StageCompile Stage = "compile"
	StageCollect Stage = "collect"
	StagePackage Stage = "package"
)

// Environment is the ambient input Configure derives the run settings from.
// It is assembled once at startup from the config file, the environment and
// the selected profile.
type Environment struct {
	Arch      string
	Subarch   string
	Cross     string
	Cross32   string
	Defconfig string
	Toolchain string
	User      string
	Host      string
	Output    string
	Image     string
	MakeArgs  []string
	Env       map[string]string

	Label  string
	Suffix string

	// Jobs caps the compile parallelism. Zero means one job per CPU.
	Jobs int
}

// BuildConfig carries everything the build stages need. Immutable for the
// duration of one run.
type BuildConfig struct {
	Arch      string
	Subarch   string
	Cross     string
	Cross32   string
	Defconfig string
	Toolchain string
	User      string
	Host      string

	// Output is the build output directory passed as make O=..., relative to
	// the source tree. Empty builds in-tree.
	Output string
	// Image is the boot image file name under arch/<arch>/boot.
	Image string

	Jobs     int
	MakeArgs []string
	Env      map[string]string
}

// BootImage returns the path the build drops the boot image at.
func (cfg BuildConfig) BootImage(paths PathSet) string {
	return filepath.Join(paths.Source, cfg.Output, "arch", cfg.Arch, "boot", cfg.Image)
}

// PathSet fixes the three directories a run reads and writes.
type PathSet struct {
	Source  string
	Staging string
	Dist    string
}

// ReleaseIdentity names the archive one run produces. Computed once at start;
// Archive is derived from the other fields (see ArchiveName).
type ReleaseIdentity struct {
	Label   string
	Suffix  string
	Stamp   time.Time
	Archive string
}

// StageResult records the timing and outcome of one executed stage.
type StageResult struct {
	Stage    Stage
	Duration time.Duration
	// ExitCode is the failing tool's exit status, 0 on success and -1 when
	// the failure didn't come from a command.
	ExitCode int
}

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	// Archive is the final archive path. Empty when the run failed before
	// the package stage completed.
	Archive string
	// Newest is the most recently modified file in the distribution
	// directory after the run.
	Newest  string
	Elapsed time.Duration
	Stages  []StageResult
}

// CommandRunner executes the build tool command lines. *shell.Runner
// implements it; tests substitute fakes.
type CommandRunner interface {
	Run(ctx context.Context, stage, script string) error
}
