package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/utils"
)

func newS3Cmd() *cobra.Command {
	var outputPath string
	var profile string
	var endpoint string

	cmd := &cobra.Command{
		Use:   "s3 [s3://BUCKET/KEY]",
		Short: "Download objects from AWS S3 or an S3-compatible store",
		Long: `Download an object, or every object under a prefix, from S3.

Examples:
  mtd s3 s3://mybucket/path/to/file.zip
  mtd s3 s3://mybucket/path/to/folder/
  mtd s3 s3://mybucket/file.zip --profile myprofile
  mtd s3 s3://mybucket/file.zip --endpoint http://localhost:9000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := args[0]
			if !strings.HasPrefix(link, "s3://") {
				link = "s3://" + link
			}
			job := newJob("s3", link, outputPath)
			job.Metadata["profile"] = profile
			job.Metadata["endpoint"] = endpoint
			return runJobs([]utils.MTDJob{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile to use")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Custom S3 endpoint (path-style addressing)")
	return cmd
}
