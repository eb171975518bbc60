package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/pipeline"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Prints the derived make environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}

		prof, err := loadProfile(ctx, cmd, cfg)
		if err != nil {
			return err
		}

		buildCfg, id := pipeline.Configure(buildEnvironment(cfg, prof), time.Now())

		env := buildCfg.MakeEnv()
		keys := make([]string, 0, len(env))
		for key := range env {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			fmt.Printf("%s=%s\n", key, env[key])
		}
		fmt.Printf("# archive: %s\n", id.Archive)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().StringP("profile", "p", "", "Build profile from profiles.star")
}
