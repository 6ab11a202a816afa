package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/woozymasta/bcn"
	"github.com/woozymasta/divaspr"
)

var exportFlags struct {
	output    string
	format    string
	entry     string
	workers   int
	overwrite bool
}

var exportCmd = &cobra.Command{
	Use:   "export <archive|bin>",
	Short: "Export every sprite as a standalone image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enc, err := divaspr.EncoderByName(exportFlags.format)
		if err != nil {
			return err
		}

		opts := &divaspr.ExportOptions{
			Encoder:       enc,
			Entry:         exportFlags.entry,
			Workers:       exportFlags.workers,
			Overwrite:     exportFlags.overwrite,
			Log:           cmd.OutOrStdout(),
			DecodeOptions: &bcn.DecodeOptions{Workers: exportFlags.workers},
		}

		report, err := divaspr.ExportFile(cmd.Context(), args[0], exportFlags.output, opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nExported %d sprites to %s\n", len(report.Exported), exportFlags.output)

		return report.Err()
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.output, "output", "o", "sprites_export", "output directory")
	f.StringVarP(&exportFlags.format, "format", "f", "png", fmt.Sprintf("image format %v", divaspr.EncoderNames()))
	f.StringVarP(&exportFlags.entry, "entry", "e", "", "archive entry holding the sprite set (default: first that parses)")
	f.IntVarP(&exportFlags.workers, "workers", "w", runtime.GOMAXPROCS(0), "concurrent sprite exports")
	f.BoolVar(&exportFlags.overwrite, "overwrite", false, "replace existing files instead of adding a suffix")

	rootCmd.AddCommand(exportCmd)
}
