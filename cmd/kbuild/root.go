package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/config"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/history"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/pipeline"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

var rootCmd = &cobra.Command{
	Use:   "kbuild",
	Short: "Builds the cepheus kernel and packages it into a flashable zip",
	Long: `kbuild drives the full kernel build: it cleans the source tree and the repack
staging directory, compiles the configured defconfig with one job per CPU,
collects the boot image and packs it into a timestamped flashable archive in
the distribution directory.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}

		prof, err := loadProfile(ctx, cmd, cfg)
		if err != nil {
			return err
		}

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		source, staging, dist, err := cfg.ResolvePaths()
		if err != nil {
			return err
		}

		capture := bytes.Buffer{}
		opts := pipeline.RunOptions{
			Env:    buildEnvironment(cfg, prof),
			Paths:  pipeline.PathSet{Source: source, Staging: staging, Dist: dist},
			Stdout: io.MultiWriter(os.Stdout, &capture),
			Stderr: io.MultiWriter(os.Stderr, &capture),
			DryRun: dryRun,
		}

		started := time.Now()
		result, runErr := pipeline.Run(ctx, opts)

		if !dryRun {
			if err := recordRun(cfg, prof.Name, started, result, runErr, capture.Bytes()); err != nil {
				term.Log(ctx).Warn().Err(err).Msg("Failed to record the run")
			}
		}

		if runErr != nil {
			if stage, ok := pipeline.FailedStage(runErr); ok {
				term.PrintError(fmt.Sprintf("The %s stage failed", stage))
			}
			return runErr
		}

		term.PrintTask(fmt.Sprintf("Latest release: %s", result.Newest))
		term.PrintTask(fmt.Sprintf("Finished in %s", pipeline.FormatElapsed(result.Elapsed)))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file (defaults to kbuild.toml)")
	rootCmd.Flags().StringP("profile", "p", "", "Build profile from profiles.star")
	rootCmd.Flags().Bool("dry", false, "Print the build commands without executing them")
}

func historyPath(cfg *config.Config) (string, error) {
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	return history.DefaultPath()
}

func recordRun(cfg *config.Config, profName string, started time.Time, result *pipeline.RunResult, runErr error, output []byte) error {
	path, err := historyPath(cfg)
	if err != nil {
		return err
	}

	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rec := history.Record{
		Profile:  profName,
		Started:  started,
		Finished: time.Now(),
		Success:  runErr == nil,
	}
	if result != nil {
		rec.Archive = result.Archive
		rec.Stages = result.Stages
	}
	if stage, ok := pipeline.FailedStage(runErr); ok {
		rec.FailedStage = string(stage)
	}

	_, err = db.Record(rec, output)
	return err
}
