package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/woozymasta/divaspr"
)

var inspectFlags struct {
	entry   string
	baseMip string
	txp     bool
}

type inspectOutput struct {
	Atlas     *divaspr.AtlasSummary     `json:"atlas,omitempty"`
	File      string                    `json:"file"`
	Format    string                    `json:"format,omitempty"`
	Entry     string                    `json:"entry,omitempty"`
	Entries   []divaspr.EntryHeader     `json:"entries,omitempty"`
	TXPBlocks []divaspr.TXPBlockSummary `json:"txp_blocks,omitempty"`
	BaseMips  []string                  `json:"base_mips,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive|bin>",
	Short: "Print a JSON summary of the sprite set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		out := inspectOutput{File: args[0]}
		scan := inspectFlags.txp || inspectFlags.baseMip != ""
		blob := data
		var atlas *divaspr.Atlas
		if divaspr.IsArchive(data) {
			a, err := divaspr.ParseArchive(data)
			if err != nil {
				return err
			}
			out.Format = a.Format.String()
			out.Entries = a.Headers
			if out.Entry, atlas, _, err = divaspr.FindAtlas(cmd.Context(), a, inspectFlags.entry); err != nil {
				return err
			}
			if scan {
				e, err := a.Open(out.Entry)
				if err != nil {
					return err
				}
				blob = e.Data
			}
		} else if atlas, err = divaspr.ParseAtlas(data); err != nil && !scan {
			return err
		}
		if atlas != nil {
			sum := atlas.Summary()
			out.Atlas = &sum
		}

		if scan {
			blocks, failed := divaspr.ScanTXPBlocks(blob)
			for _, f := range failed {
				glog.V(1).Infof("%s: %v", args[0], f)
			}
			for _, b := range blocks {
				out.TXPBlocks = append(out.TXPBlocks, b.Summary())
			}
			if atlas == nil && len(blocks) == 0 {
				return err
			}

			if inspectFlags.baseMip != "" {
				if out.BaseMips, err = divaspr.ExportBaseMips(blocks, inspectFlags.baseMip); err != nil {
					return err
				}
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}

		return nil
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVarP(&inspectFlags.entry, "entry", "e", "", "archive entry holding the sprite set")
	f.BoolVar(&inspectFlags.txp, "txp", false, "scan the sprite set blob for TXP blocks")
	f.StringVar(&inspectFlags.baseMip, "export-base-mip", "", "write the base mip of every TXP texture into this directory (implies --txp)")
	rootCmd.AddCommand(inspectCmd)
}
