package main

import (
	"github.com/spf13/cobra"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/toolchain"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Downloads and unpacks the cross toolchains",
	Long: `Downloads the toolchains listed in toolchains.yml, verifies their checksums
and unpacks them into the toolchain directory. Entries whose stamps are still
current are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		manifest, err := toolchain.LoadManifest(cfg.Toolchain.Manifest)
		if err != nil {
			return err
		}

		return toolchain.Fetch(ctx, manifest, cfg.Toolchain.Dir, force)
	},
}

func init() {
	rootCmd.AddCommand(toolchainCmd)
	toolchainCmd.Flags().BoolP("force", "f", false, "Re-download even if the stamps are current")
}
