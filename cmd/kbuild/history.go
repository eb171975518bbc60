package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/history"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/pipeline"
)

var historyCmd = &cobra.Command{
	Use:   "history [run id]",
	Short: "Lists past builds or replays a build's captured output",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}

		path, err := historyPath(cfg)
		if err != nil {
			return err
		}

		db, err := history.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			output, err := db.Log(args[0])
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(output)
			return err
		}

		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		records, err := db.Recent(limit)
		if err != nil {
			return err
		}

		for _, rec := range records {
			status := "ok"
			if !rec.Success {
				status = "failed"
				if rec.FailedStage != "" {
					status = "failed at " + rec.FailedStage
				}
			}

			elapsed := rec.Finished.Sub(rec.Started)
			fmt.Printf("%s  %s  %-8s  %-20s  %s\n", rec.ID,
				rec.Started.Format("2006-01-02 15:04"), rec.Profile,
				status, pipeline.FormatElapsed(elapsed))
			if rec.Archive != "" {
				fmt.Printf("%*s%s\n", len(rec.ID)+2, "", rec.Archive)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to list")
}
