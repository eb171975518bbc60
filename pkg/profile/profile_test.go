package profile

import (
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

func writeProfiles(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profiles.star")
	if err := os.WriteFile(path, []byte(script), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	profiles, err := Load(testCtx(), filepath.Join(t.TempDir(), "profiles.star"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(profiles) != 1 {
		t.Fatalf("expected only the default profile, got %d", len(profiles))
	}
	if _, ok := profiles[DefaultName]; !ok {
		t.Error("expected the default profile to exist")
	}
}

func TestLoadAndResolve(t *testing.T) {
	path := writeProfiles(t, `
profile("default", defconfig = "cepheus_user_defconfig")
profile(
    "ksu",
    base = "default",
    suffix = "KSU-",
    make_args = ["LLVM=1"],
    env = {"KSU": "true"},
)
profile(
    "ksu-debug",
    base = "ksu",
    suffix = "KSU-DEBUG-",
    make_args = ["V=1"],
    env = {"DEBUG": "1"},
)
`)

	profiles, err := Load(testCtx(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	prof, err := Resolve(profiles, "ksu-debug")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if prof.Defconfig != "cepheus_user_defconfig" {
		t.Errorf("expected the defconfig to be inherited, got %q", prof.Defconfig)
	}
	if prof.Suffix != "KSU-DEBUG-" {
		t.Errorf("expected the leaf suffix to win, got %q", prof.Suffix)
	}

	// make arguments accumulate from base to leaf
	if len(prof.MakeArgs) != 2 || prof.MakeArgs[0] != "LLVM=1" || prof.MakeArgs[1] != "V=1" {
		t.Errorf("unexpected make args %v", prof.MakeArgs)
	}
	if prof.Env["KSU"] != "true" || prof.Env["DEBUG"] != "1" {
		t.Errorf("unexpected env %v", prof.Env)
	}
}

func TestResolveUnknown(t *testing.T) {
	profiles, err := Load(testCtx(), filepath.Join(t.TempDir(), "profiles.star"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = Resolve(profiles, "nope")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "not found") || !strings.Contains(err.Error(), DefaultName) {
		t.Errorf("expected the error to list the known profiles, got %v", err)
	}
}

func TestResolveCycle(t *testing.T) {
	path := writeProfiles(t, `
profile("a", base = "b")
profile("b", base = "a")
`)

	profiles, err := Load(testCtx(), path)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Resolve(profiles, "a")
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected a cycle error, got %v", err)
	}
}

func TestDuplicateDeclaration(t *testing.T) {
	path := writeProfiles(t, `
profile("a")
profile("a")
`)

	_, err := Load(testCtx(), path)
	if err == nil || !strings.Contains(err.Error(), "already declared") {
		t.Errorf("expected a duplicate error, got %v", err)
	}
}

func TestGetenvBuiltin(t *testing.T) {
	t.Setenv("CEPHEUS_TEST_SUFFIX", "NIGHTLY-")
	path := writeProfiles(t, `
profile("nightly", suffix = getenv("CEPHEUS_TEST_SUFFIX", "FALLBACK-"))
profile("fallback", suffix = getenv("CEPHEUS_TEST_UNSET", "FALLBACK-"))
`)

	profiles, err := Load(testCtx(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if profiles["nightly"].Suffix != "NIGHTLY-" {
		t.Errorf("expected the env value, got %q", profiles["nightly"].Suffix)
	}
	if profiles["fallback"].Suffix != "FALLBACK-" {
		t.Errorf("expected the fallback, got %q", profiles["fallback"].Suffix)
	}
}
