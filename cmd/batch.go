package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/utils"
	"gopkg.in/yaml.v3"
)

// BatchFile groups download entries by job type, e.g.
//
//	http:
//	  - link: https://example.com/a.iso
//	    op: isos/a.iso
//	s3:
//	  - link: s3://bucket/key
type BatchFile map[string][]utils.DownloadEntry

func newBatchCmd() *cobra.Command {
	var profile string
	var creds driveCredentials

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchFile, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			jobs := buildJobsFromBatch(batchFile)
			if len(jobs) == 0 {
				return fmt.Errorf("no valid jobs found in the batch file")
			}
			for i := range jobs {
				switch jobs[i].JobType {
				case "s3":
					jobs[i].Metadata["profile"] = profile
				case "google-drive":
					creds.apply(&jobs[i])
				}
			}
			return runJobs(jobs)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile for s3 entries")
	creds.register(cmd)
	return cmd
}

func readBatchFile(path string) (BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	return batchFile, nil
}

func buildJobsFromBatch(batchFile BatchFile) []utils.MTDJob {
	var jobs []utils.MTDJob
	types := make([]string, 0, len(batchFile))
	for jobType := range batchFile {
		types = append(types, jobType)
	}
	slices.Sort(types)
	for _, jobType := range types {
		normalizedType := normalizeJobType(jobType)
		if normalizedType == "" {
			log.Warn().Str("op", "cmd/batch").Msgf("unknown job type '%s', skipping", jobType)
			continue
		}
		for _, entry := range batchFile[jobType] {
			if entry.URL == "" {
				log.Warn().Str("op", "cmd/batch").Msgf("empty link found in %s section, skipping", jobType)
				continue
			}
			job := newJob(normalizedType, entry.URL, entry.OutputPath)
			if entry.Threads > 0 {
				job.Threads = entry.Threads
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func normalizeJobType(jobType string) string {
	switch strings.ToLower(jobType) {
	case "http", "https":
		return "http"
	case "s3":
		return "s3"
	case "gdrive", "googledrive", "google-drive", "drive":
		return "google-drive"
	case "github-release", "ghrelease", "gh":
		return "github-release"
	}
	return ""
}
