package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/config"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/pipeline"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/profile"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// setup loads the configuration, wires up logging and returns a context
// carrying the logger. Every subcommand starts here.
func setup(cmd *cobra.Command) (*config.Config, context.Context, error) {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	files := []string{}
	if cfgFile != "" {
		files = append(files, cfgFile)
	}

	cfg, loader := config.Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, nil, eris.Wrap(err, "failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var out io.Writer = term.NewConsoleWriter()
	if cfg.Log.JSON {
		out = os.Stderr
	}

	if cfg.Log.File != "" {
		logFile, err := os.Create(cfg.Log.File)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "failed to create log file %s", cfg.Log.File)
		}

		if cfg.Log.JSON {
			out = logFile
		} else {
			out = &term.ConsoleWriter{Out: logFile}
		}
	}

	logger := zerolog.New(out).Level(cfg.LogLevel()).With().Timestamp().Logger()
	ctx := term.WithLogger(cmd.Context(), &logger)

	return cfg, ctx, nil
}

// loadProfile resolves the profile named by the --profile flag against the
// declarations in the profiles file.
func loadProfile(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*profile.Profile, error) {
	name, err := cmd.Flags().GetString("profile")
	if err != nil {
		return nil, err
	}

	profiles, err := profile.Load(ctx, cfg.Profiles)
	if err != nil {
		return nil, err
	}

	return profile.Resolve(profiles, name)
}

// buildEnvironment merges the configuration and the selected profile into the
// pipeline's ambient input. Profile fields win where set; make arguments and
// env entries only come from the profile.
func buildEnvironment(cfg *config.Config, prof *profile.Profile) pipeline.Environment {
	env := pipeline.Environment{
		Arch:      cfg.Kernel.Arch,
		Subarch:   cfg.Kernel.Subarch,
		Cross:     cfg.Toolchain.Cross,
		Cross32:   cfg.Toolchain.Cross32,
		Defconfig: cfg.Kernel.Defconfig,
		Toolchain: cfg.Toolchain.Path,
		User:      cfg.Identity.User,
		Host:      cfg.Identity.Host,
		Output:    cfg.Kernel.Output,
		Image:     cfg.Kernel.Image,
		MakeArgs:  prof.MakeArgs,
		Env:       prof.Env,
		Label:     cfg.Release.Label,
		Suffix:    cfg.Release.Suffix,
	}

	if prof.Defconfig != "" {
		env.Defconfig = prof.Defconfig
	}
	if prof.Label != "" {
		env.Label = prof.Label
	}
	if prof.Suffix != "" {
		env.Suffix = prof.Suffix
	}

	return env
}
