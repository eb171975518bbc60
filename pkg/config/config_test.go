package config

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaults(t *testing.T) {
	cfg, loader := Loader()
	if err := loader.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Release.Label != "POST-SOVIET-MI9-" {
		t.Errorf("unexpected release label %q", cfg.Release.Label)
	}
	if cfg.Kernel.Defconfig != "cepheus_user_defconfig" {
		t.Errorf("unexpected defconfig %q", cfg.Kernel.Defconfig)
	}
	if cfg.Kernel.Image != "Image.gz-dtb" {
		t.Errorf("unexpected image %q", cfg.Kernel.Image)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected the defaults to validate: %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CEPHEUS_RELEASE_SUFFIX", "KSU-")
	t.Setenv("CEPHEUS_LOG_LEVEL", "debug")

	cfg, loader := Loader()
	if err := loader.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Release.Suffix != "KSU-" {
		t.Errorf("unexpected suffix %q", cfg.Release.Suffix)
	}
	if cfg.LogLevel() != zerolog.DebugLevel {
		t.Errorf("unexpected log level %v", cfg.LogLevel())
	}
}

func TestValidate(t *testing.T) {
	cfg, loader := Loader()
	if err := loader.Load(); err != nil {
		t.Fatal(err)
	}

	cfg.Log.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an invalid log level to be rejected")
	}
	cfg.Log.Level = "info"

	cfg.Kernel.Defconfig = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an empty defconfig to be rejected")
	}
	cfg.Kernel.Defconfig = "cepheus_user_defconfig"

	cfg.Release.Suffix = "KSU/"
	if err := cfg.Validate(); err == nil {
		t.Error("expected a suffix with a path separator to be rejected")
	}
	cfg.Release.Suffix = ""

	cfg.Kernel.Image = "boot/Image"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an image path to be rejected")
	}
}

func TestResolvePaths(t *testing.T) {
	cfg, loader := Loader()
	if err := loader.Load(); err != nil {
		t.Fatal(err)
	}

	source, staging, dist, err := cfg.ResolvePaths()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !filepath.IsAbs(source) || !filepath.IsAbs(staging) || !filepath.IsAbs(dist) {
		t.Errorf("expected absolute paths, got %s, %s, %s", source, staging, dist)
	}
	if filepath.Dir(staging) != source {
		t.Errorf("expected relative staging to be anchored at the source tree, got %s", staging)
	}
}
