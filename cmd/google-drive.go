package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/utils"
)

func newGDriveCmd() *cobra.Command {
	var outputPath string
	var creds driveCredentials

	cmd := &cobra.Command{
		Use:     "google-drive [URL] [--output OUTPUT_PATH] [--api-key YOUR_KEY] [--creds creds.json]",
		Short:   "Download files from Google Drive",
		Aliases: []string{"gdrive", "gd", "drive"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := newJob("google-drive", args[0], outputPath)
			creds.apply(&job)
			return runJobs([]utils.MTDJob{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	creds.register(cmd)
	return cmd
}

type driveCredentials struct {
	apiKey          string
	credentialsFile string
}

func (c *driveCredentials) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.apiKey, "api-key", "", "Google Drive API key")
	cmd.Flags().StringVar(&c.credentialsFile, "creds", "", "OAuth credentials JSON file")
}

func (c *driveCredentials) apply(job *utils.MTDJob) {
	if c.apiKey != "" {
		job.Metadata["apiKey"] = c.apiKey
	}
	if c.credentialsFile != "" {
		job.Metadata["credentialsFile"] = c.credentialsFile
	}
}
