package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/woozymasta/divaspr"
)

var txdOutput string

var txdCmd = &cobra.Command{
	Use:   "txd <file>",
	Short: "Dump raw subtexture blobs of a TXP file",
	Long: `txd parses a standalone texture set, texture or subtexture and writes
every subtexture payload as a .bin file. Files that do not start with a TXP
signature are scanned for embedded TXP blocks instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", divaspr.ErrOpenFile, path, err)
		}

		out := txdOutput
		if out == "" {
			out = path + "_subtextures"
		}

		block, err := divaspr.ParseTXP(data)
		if err == nil {
			paths, err := divaspr.DumpSubTextures(block, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d subtexture blobs to %s\n", len(paths), out)
			return nil
		}
		if !errors.Is(err, divaspr.ErrTXPSignature) {
			return err
		}

		blocks, failed := divaspr.ScanTXPBlocks(data)
		for _, f := range failed {
			glog.Warningf("%s: %v", path, f)
		}
		if len(blocks) == 0 {
			if len(failed) == 0 {
				return fmt.Errorf("%s: no embedded TXP found: %w", path, err)
			}
			return fmt.Errorf("%s: found %d candidate signatures but parsed none: %w", path, len(failed), failed[0])
		}

		for _, b := range blocks {
			dir := filepath.Join(out, "embedded_"+strconv.Itoa(b.Offset))
			paths, err := divaspr.DumpSubTextures(b, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "At offset %d: wrote %d subtexture blobs to %s\n", b.Offset, len(paths), dir)
		}

		return nil
	},
}

func init() {
	txdCmd.Flags().StringVarP(&txdOutput, "output", "o", "", "output directory (default <file>_subtextures)")
	rootCmd.AddCommand(txdCmd)
}
