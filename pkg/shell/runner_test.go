package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

func testCtx() context.Context {
	logger := zerolog.Nop()
	return term.WithLogger(context.Background(), &logger)
}

func TestOutput(t *testing.T) {
	runner := Runner{}
	out, err := runner.Output(testCtx(), "test", "echo hello")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if strings.TrimSpace(out) != "hello" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestEnvOverride(t *testing.T) {
	runner := Runner{Env: map[string]string{"CEPHEUS_TEST_VALUE": "works"}}
	out, err := runner.Output(testCtx(), "test", "echo $CEPHEUS_TEST_VALUE")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if strings.TrimSpace(out) != "works" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExitCode(t *testing.T) {
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := runner.Run(testCtx(), "test", "exit 3")
	if err == nil {
		t.Fatal("expected an error")
	}

	if code := ExitCode(err); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
}

func TestExitCodeFallbacks(t *testing.T) {
	if code := ExitCode(nil); code != 0 {
		t.Errorf("expected 0 for nil, got %d", code)
	}
	if code := ExitCode(os.ErrNotExist); code != -1 {
		t.Errorf("expected -1 for non-command errors, got %d", code)
	}
}

func TestAbortsOnFailure(t *testing.T) {
	dir := t.TempDir()
	runner := Runner{Dir: dir, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	err := runner.Run(testCtx(), "test", "false\necho after > marker")
	if err == nil {
		t.Fatal("expected an error")
	}

	if _, err := os.Stat(filepath.Join(dir, "marker")); err == nil {
		t.Error("expected the statement after the failure to be skipped")
	}
}

func TestDryRun(t *testing.T) {
	dir := t.TempDir()
	runner := Runner{Dir: dir, DryRun: true, Stdout: &bytes.Buffer{}}

	err := runner.Run(testCtx(), "test", "echo content > marker")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "marker")); err == nil {
		t.Error("expected a dry run not to execute anything")
	}
}
