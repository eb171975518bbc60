package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

func testCtx() context.Context {
	logger := zerolog.Nop()
	return term.WithLogger(context.Background(), &logger)
}

// fakeRunner records every script it receives and can fail on demand.
type fakeRunner struct {
	calls  []string
	failOn string
	onRun  func(stage, script string) error
}

func (r *fakeRunner) Run(ctx context.Context, stage, script string) error {
	r.calls = append(r.calls, script)

	if r.failOn != "" && strings.Contains(script, r.failOn) {
		return eris.Errorf("fake failure on %s", script)
	}
	if r.onRun != nil {
		return r.onRun(stage, script)
	}
	return nil
}

func testPaths(t *testing.T) PathSet {
	t.Helper()

	base := t.TempDir()
	paths := PathSet{
		Source:  filepath.Join(base, "kernel"),
		Staging: filepath.Join(base, "AnyKernel3"),
		Dist:    filepath.Join(base, "releases"),
	}
	for _, dir := range []string{paths.Source, paths.Staging, paths.Dist} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func testEnv() Environment {
	return Environment{
		Arch:      "arm64",
		Subarch:   "arm64",
		Defconfig: "cepheus_user_defconfig",
		Image:     "Image.gz-dtb",
		Label:     "POST-SOVIET-MI9-",
		Jobs:      4,
	}
}

func TestRunStageOrder(t *testing.T) {
	paths := testPaths(t)
	env := testEnv()

	// deposit the boot image once the build command runs
	runner := &fakeRunner{}
	runner.onRun = func(stage, script string) error {
		if strings.Contains(script, "-j4") {
			bootDir := filepath.Join(paths.Source, "arch", "arm64", "boot")
			if err := os.MkdirAll(bootDir, 0700); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(bootDir, "Image.gz-dtb"), []byte("kernel"), 0600)
		}
		return nil
	}

	result, err := Run(testCtx(), RunOptions{Env: env, Paths: paths, Runner: runner})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expected := []string{
		"make clean && make mrproper",
		"make cepheus_user_defconfig",
		"make -j4",
	}
	if len(runner.calls) != len(expected) {
		t.Fatalf("expected %d commands, got %v", len(expected), runner.calls)
	}
	for idx, script := range expected {
		if runner.calls[idx] != script {
			t.Errorf("command %d: expected %q, got %q", idx, script, runner.calls[idx])
		}
	}

	order := []Stage{StageClean, StageCompile, StageCollect, StagePackage}
	if len(result.Stages) != len(order) {
		t.Fatalf("expected %d stage results, got %d", len(order), len(result.Stages))
	}
	for idx, stage := range order {
		if result.Stages[idx].Stage != stage {
			t.Errorf("stage %d: expected %s, got %s", idx, stage, result.Stages[idx].Stage)
		}
	}
}

func TestRunEndToEnd(t *testing.T) {
	paths := testPaths(t)
	env := testEnv()

	// a stale image in staging has to disappear during the clean stage
	stale := filepath.Join(paths.Staging, "Image.gz-dtb")
	if err := os.WriteFile(stale, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	runner.onRun = func(stage, script string) error {
		if stage == string(StageClean) {
			if _, err := os.Stat(stale); !eris.Is(err, os.ErrNotExist) {
				t.Error("expected the stale image to be removed before make clean")
			}
		}

		if strings.Contains(script, "-j4") {
			bootDir := filepath.Join(paths.Source, "arch", "arm64", "boot")
			if err := os.MkdirAll(bootDir, 0700); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(bootDir, "Image.gz-dtb"), []byte("kernel"), 0600)
		}
		return nil
	}

	stamp := time.Date(2024, 5, 1, 13, 7, 0, 0, time.UTC)
	result, err := Run(testCtx(), RunOptions{
		Env:    env,
		Paths:  paths,
		Runner: runner,
		Now:    func() time.Time { return stamp },
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expected := filepath.Join(paths.Dist, "POST-SOVIET-MI9-20240501-1307.zip")
	if result.Archive != expected {
		t.Errorf("expected archive %s, got %s", expected, result.Archive)
	}
	if result.Newest != expected {
		t.Errorf("expected newest file %s, got %s", expected, result.Newest)
	}

	entries, err := os.ReadDir(paths.Dist)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one archive, found %d entries", len(entries))
	}

	reader, err := zip.OpenReader(result.Archive)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer reader.Close()

	found := false
	for _, item := range reader.File {
		if item.Name == "Image.gz-dtb" {
			found = true
		}
	}
	if !found {
		t.Error("expected Image.gz-dtb in the archive")
	}
}

func TestRunCompileFailureAborts(t *testing.T) {
	paths := testPaths(t)
	runner := &fakeRunner{failOn: "defconfig"}

	result, err := Run(testCtx(), RunOptions{Env: testEnv(), Paths: paths, Runner: runner})
	if err == nil {
		t.Fatal("expected the run to fail")
	}

	stage, ok := FailedStage(err)
	if !ok || stage != StageCompile {
		t.Errorf("expected a compile failure, got %v (%v)", stage, err)
	}

	// collect and package never ran
	if len(result.Stages) != 2 {
		t.Fatalf("expected clean and compile results only, got %d", len(result.Stages))
	}
	if result.Archive != "" {
		t.Errorf("expected no archive, got %s", result.Archive)
	}

	entries, err := os.ReadDir(paths.Dist)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected an empty distribution directory, found %d entries", len(entries))
	}
}

func TestCollectMissingArtifact(t *testing.T) {
	paths := testPaths(t)
	cfg, _ := Configure(testEnv(), time.Now())

	err := Collect(testCtx(), cfg, paths)
	if err == nil {
		t.Fatal("expected collect to fail")
	}

	if !eris.Is(err, ErrArtifactMissing) {
		t.Errorf("expected ErrArtifactMissing, got %v", err)
	}
	if stage, ok := FailedStage(err); !ok || stage != StageCollect {
		t.Errorf("expected a collect failure, got %v", stage)
	}
}

func TestFormatElapsed(t *testing.T) {
	if out := FormatElapsed(83 * time.Second); out != "1 minute(s) and 23 second(s)" {
		t.Errorf("unexpected summary %q", out)
	}
}

func TestNewestFile(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "older.zip")
	newer := filepath.Join(dir, "newer.zip")

	if err := os.WriteFile(older, []byte("a"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte("b"), 0600); err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	newest, err := NewestFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if newest != newer {
		t.Errorf("expected %s, got %s", newer, newest)
	}
}
