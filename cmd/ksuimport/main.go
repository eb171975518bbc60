// ksuimport vendors the out-of-tree module repositories listed in VENDOR.yml
// (by default KernelSU at drivers/staging/kernelsu) into the kernel tree.
package main

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/shell"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/subtree"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

var rootCmd = &cobra.Command{
	Use:   "ksuimport",
	Short: "Imports vendored module trees into the kernel repository",
	Long: `ksuimport performs a subtree-style import of each repository listed in the
vendor manifest. When the target prefix already exists it is deleted instead;
commit the removal and re-run to import a fresh copy.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, err := cmd.Flags().GetString("manifest")
		if err != nil {
			return err
		}

		only, err := cmd.Flags().GetString("only")
		if err != nil {
			return err
		}

		level := zerolog.InfoLevel
		if os.Getenv("CEPHEUS_DEBUG") != "" {
			level = zerolog.DebugLevel
		}
		logger := zerolog.New(term.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
		ctx := term.WithLogger(cmd.Context(), &logger)

		manifest, err := subtree.Load(manifestPath)
		if err != nil {
			return err
		}

		root, err := filepath.Abs(filepath.Dir(manifestPath))
		if err != nil {
			return err
		}

		git := &shell.Runner{Dir: root}

		names := make([]string, 0, len(manifest.Subtrees))
		for name := range manifest.Subtrees {
			if only != "" && name != only {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		if only != "" && len(names) == 0 {
			logger.Fatal().Msgf("Subtree %s is not in %s", only, manifestPath)
		}

		for _, name := range names {
			if err := subtree.Import(ctx, git, root, manifest.Subtrees[name]); err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	rootCmd.Flags().StringP("manifest", "m", "VENDOR.yml", "Vendor manifest")
	rootCmd.Flags().String("only", "", "Import only the named subtree")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
