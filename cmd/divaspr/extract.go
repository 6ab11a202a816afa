package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/woozymasta/divaspr"
)

var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract <archive>",
	Short: "Extract raw decompressed archive entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := divaspr.OpenArchive(args[0])
		if err != nil {
			return err
		}

		paths, failed, err := divaspr.ExtractEntries(cmd.Context(), a, extractOutput)
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted: %s\n", p)
		}
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d entries failed: %w", len(failed), len(a.Headers), failed[0])
		}

		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "farc_extract", "output directory")
	rootCmd.AddCommand(extractCmd)
}
