package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

func newResumeCmd() *cobra.Command {
	var profile string
	var endpoint string
	var creds driveCredentials

	cmd := &cobra.Command{
		Use:   "resume [FILE.mtd ...]",
		Short: "Resume interrupted downloads from their working files",
		Long: `Resume reads the progress stored at the end of each working file and
continues the download from the same source, URL and thread layout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []utils.MTDJob
			for _, arg := range args {
				job, err := resumeJob(fs, arg)
				if err != nil {
					return err
				}
				switch job.JobType {
				case "s3":
					job.Metadata["profile"] = profile
					job.Metadata["endpoint"] = endpoint
				case "google-drive":
					creds.apply(&job)
				}
				jobs = append(jobs, job)
			}
			return runJobs(jobs)
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile for s3 downloads")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Custom S3 endpoint for s3 downloads")
	creds.register(cmd)
	return cmd
}

// readWorkingFile loads the meta of a working file; path may name the
// working file or the file being downloaded.
func readWorkingFile(fs afero.Fs, path string) (mtd.Meta, error) {
	if !strings.HasSuffix(path, mtd.WorkingFileSuffix) {
		path += mtd.WorkingFileSuffix
	}
	file, err := fs.Open(path)
	if err != nil {
		return mtd.Meta{}, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return mtd.Meta{}, err
	}
	m, _, err := mtd.ReadTrailer(file, stat.Size())
	if err != nil {
		return mtd.Meta{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func resumeJob(fs afero.Fs, path string) (utils.MTDJob, error) {
	m, err := readWorkingFile(fs, path)
	if err != nil {
		return utils.MTDJob{}, err
	}
	jobType := normalizeJobType(m.Source)
	if jobType == "" {
		return utils.MTDJob{}, fmt.Errorf("%s: unknown source %q", path, m.Source)
	}
	job := newJob(jobType, m.URL, m.Path)
	job.Threads = m.Range
	job.MetaWrite = time.Duration(m.MetaWrite) * time.Millisecond
	return job, nil
}
