// Package config loads the build settings from kbuild.toml and the CEPHEUS_*
// environment. Command line switches stay with cobra; everything that
// describes the kernel, the toolchain or the release identity lives here.
package config

import (
	"path/filepath"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options
type Config struct {
	Kernel struct {
		Source    string `default:"." usage:"Kernel source tree"`
		Output    string `usage:"Build output directory passed as make O=..., empty builds in-tree"`
		Defconfig string `default:"cepheus_user_defconfig" usage:"Defconfig profile that seeds the build"`
		Arch      string `default:"arm64"`
		Subarch   string `default:"arm64"`
		Image     string `default:"Image.gz-dtb" usage:"Boot image the build produces under arch/<arch>/boot"`
	}
	Toolchain struct {
		Path     string `usage:"Toolchain bin directory, prepended to PATH"`
		Cross    string `default:"aarch64-linux-android-" usage:"CROSS_COMPILE prefix (64-bit ABI)"`
		Cross32  string `default:"arm-linux-androideabi-" usage:"CROSS_COMPILE_ARM32 prefix (32-bit ABI)"`
		Manifest string `default:"toolchains.yml" usage:"Toolchain download manifest"`
		Dir      string `default:"toolchains" usage:"Directory fetched toolchains are extracted into"`
	}
	Identity struct {
		User string `default:"balgxmr" usage:"KBUILD_BUILD_USER"`
		Host string `default:"cepheus" usage:"KBUILD_BUILD_HOST"`
	}
	Release struct {
		Label  string `default:"POST-SOVIET-MI9-" usage:"Base label for flashable archives"`
		Suffix string `usage:"Free-form label suffix, e.g. KSU-"`
	}
	Paths struct {
		Staging string `default:"AnyKernel3" usage:"Repack staging directory"`
		Dist    string `default:"releases" usage:"Distribution directory for finished archives"`
	}
	History struct {
		Path string `usage:"Run history database, defaults to the XDG state directory"`
	}
	Profiles string `default:"profiles.star" usage:"Build profile declarations"`
	Log      struct {
		Level string `default:"info"`
		File  string
		JSON  bool `default:"false" usage:"Output JSONND instead of pretty console messages"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this
// object. Extra files take the place of the default kbuild.toml.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{"kbuild.toml"}
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CEPHEUS",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Kernel.Defconfig == "" {
		return eris.New(`Invalid value for kernel.defconfig: must not be empty`)
	}

	if strings.ContainsAny(cfg.Release.Label+cfg.Release.Suffix, `/\`) {
		return eris.New(`Invalid value for release.label or release.suffix: must not contain path separators`)
	}

	if strings.Contains(cfg.Kernel.Image, "/") {
		return eris.Errorf(`Invalid value for kernel.image: %s (must be a plain file name)`, cfg.Kernel.Image)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// ResolvePaths absolutizes the source, staging and distribution directories.
// Relative staging and distribution paths are anchored at the source tree.
func (cfg *Config) ResolvePaths() (source, staging, dist string, err error) {
	source, err = filepath.Abs(cfg.Kernel.Source)
	if err != nil {
		return "", "", "", eris.Wrapf(err, "Failed to resolve %s", cfg.Kernel.Source)
	}

	staging = cfg.Paths.Staging
	if !filepath.IsAbs(staging) {
		staging = filepath.Join(source, staging)
	}

	dist = cfg.Paths.Dist
	if !filepath.IsAbs(dist) {
		dist = filepath.Join(source, dist)
	}

	return source, staging, dist, nil
}
