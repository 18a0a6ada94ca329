package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/utils"
)

func newGHReleaseCmd() *cobra.Command {
	var outputPath string
	var asset string

	cmd := &cobra.Command{
		Use:     "github-release [OWNER/REPO | URL] [--asset NAME] [--output OUTPUT_PATH]",
		Short:   "Download an asset of the latest GitHub release",
		Aliases: []string{"ghrelease", "gh"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := newJob("github-release", args[0], outputPath)
			if asset != "" {
				job.Metadata["asset"] = asset
			}
			return runJobs([]utils.MTDJob{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&asset, "asset", "", "Substring of the asset name (default: asset for this OS/arch)")
	return cmd
}
