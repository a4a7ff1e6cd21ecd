// Package cli implements zonectl, the operator tool for mute zones.
package cli

import (
	"os"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the zonectl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zonectl",
		Short:         "Inspect and manage mute zones",
		Long:          "Computes distances, dry-runs zone matching, validates zone files,\ngenerates test tracks and edits the shared Redis zone set.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().Float64("default-radius", 50, "Radius in meters for zones that omit one")

	root.AddCommand(
		newDistanceCmd(),
		newMatchCmd(),
		newValidateCmd(),
		newTrackCmd(),
		newZonesCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultRadius(cmd *cobra.Command) float64 {
	r, _ := cmd.Flags().GetFloat64("default-radius")
	return r
}

func zoneFileFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("zones", "z", sharedcfg.EnvOrDefault("ZONE_FILE", "zones.yaml"), "Zone file (YAML)")
}
