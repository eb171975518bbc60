package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var compdbCmd = &cobra.Command{
	Use:   "compdb <output file> <input files...>",
	Short: "Merges several compile_commands.json files for clangd",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := make([]interface{}, 0)
		var chunk []interface{}
		for _, fpath := range args[1:] {
			data, err := os.ReadFile(fpath)
			if err != nil {
				return eris.Wrapf(err, "failed to read %s", fpath)
			}

			err = json.Unmarshal(data, &chunk)
			if err != nil {
				return eris.Wrapf(err, "failed to decode %s", fpath)
			}

			output = append(output, chunk...)
		}

		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return eris.Wrap(err, "failed to encode output")
		}

		err = os.WriteFile(args[0], data, 0660)
		if err != nil {
			return eris.Wrapf(err, "failed to write to %s", args[0])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(compdbCmd)
}
