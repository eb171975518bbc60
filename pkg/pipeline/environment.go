package pipeline

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Configure derives the immutable per-run settings from the ambient
// environment. It has no side effects and returns identical values for
// identical inputs, including the timestamp.
func Configure(env Environment, stamp time.Time) (BuildConfig, ReleaseIdentity) {
	cfg := BuildConfig{
		Arch:      env.Arch,
		Subarch:   env.Subarch,
		Cross:     env.Cross,
		Cross32:   env.Cross32,
		Defconfig: env.Defconfig,
		Toolchain: env.Toolchain,
		User:      env.User,
		Host:      env.Host,
		Output:    env.Output,
		Image:     env.Image,
		Jobs:      env.Jobs,
		MakeArgs:  env.MakeArgs,
		Env:       env.Env,
	}
	if cfg.Jobs < 1 {
		cfg.Jobs = runtime.NumCPU()
	}

	id := ReleaseIdentity{
		Label:   env.Label,
		Suffix:  env.Suffix,
		Stamp:   stamp,
		Archive: ArchiveName(env.Label, env.Suffix, stamp),
	}

	return cfg, id
}

// ArchiveName derives the flashable archive name from the release labeling
// and the run timestamp. The minute granularity means two runs within the
// same minute produce the same name; that limitation is accepted.
func ArchiveName(label, suffix string, stamp time.Time) string {
	name := label + suffix
	if !strings.HasSuffix(name, "-") {
		name += "-"
	}

	return name + stamp.Format("20060102-1504") + ".zip"
}

// MakeEnv returns the environment overlay every build command runs with.
// Profile entries come first so the core settings always win.
func (cfg BuildConfig) MakeEnv() map[string]string {
	env := make(map[string]string, len(cfg.Env)+7)
	for key, value := range cfg.Env {
		env[key] = value
	}

	set := func(key, value string) {
		if value != "" {
			env[key] = value
		}
	}

	set("ARCH", cfg.Arch)
	set("SUBARCH", cfg.Subarch)
	set("CROSS_COMPILE", cfg.Cross)
	set("CROSS_COMPILE_ARM32", cfg.Cross32)
	set("KBUILD_BUILD_USER", cfg.User)
	set("KBUILD_BUILD_HOST", cfg.Host)

	if cfg.Toolchain != "" {
		env["PATH"] = cfg.Toolchain + string(os.PathListSeparator) + os.Getenv("PATH")
	}

	return env
}

func makeCmd(cfg BuildConfig, args ...string) string {
	parts := []string{"make"}
	if cfg.Output != "" {
		parts = append(parts, "O="+cfg.Output)
	}
	parts = append(parts, args...)

	return strings.Join(parts, " ")
}

func cleanScript(cfg BuildConfig) string {
	return makeCmd(cfg, "clean") + " && " + makeCmd(cfg, "mrproper")
}

func configScript(cfg BuildConfig) string {
	return makeCmd(cfg, cfg.Defconfig)
}

func buildScript(cfg BuildConfig) string {
	args := append([]string{fmt.Sprintf("-j%d", cfg.Jobs)}, cfg.MakeArgs...)
	return makeCmd(cfg, args...)
}
