package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

var profileMode string

var rootCmd = &cobra.Command{
	Use:   "divaspr",
	Short: "Extract sprites from Project DIVA FARC archives",
	Long: `divaspr reads FARC/FArC/FArc archives and the sprite sets inside them.

Supported operations:
  - Export every sprite as an image (PNG, TIFF or EDDS)
  - Extract raw decompressed archive entries
  - Print a JSON summary of a sprite set and its TXP blocks
  - Dump raw subtexture blobs of TXP files`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return startProfile(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		stopProfile()
		glog.Flush()
	},
}

var stopper interface{ Stop() }

func startProfile(cmd *cobra.Command) error {
	var mode func(*profile.Profile)
	switch profileMode {
	case "":
		return nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfileAllocs
	default:
		return fmt.Errorf("unknown --profile %q (want cpu or mem)", profileMode)
	}

	stopper = profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet)
	glog.V(1).Infof("%s: profiling %s", cmd.Name(), profileMode)

	return nil
}

func stopProfile() {
	if stopper != nil {
		stopper.Stop()
		stopper = nil
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		stopProfile()
		glog.Flush()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the current directory")

	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	_ = flag.Set("logtostderr", "true")
}
