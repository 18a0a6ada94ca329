package utils

import (
	"context"
	"time"
)

// Downloader is implemented once per job type and driven by the scheduler
// in the order ValidateJob, BuildJob, Download.
type Downloader interface {
	ValidateJob(job *MTDJob) error
	BuildJob(ctx context.Context, job *MTDJob) error
	Download(ctx context.Context, job *MTDJob) error
}

// Progress is the job-level view of a download's meta.
type Progress struct {
	Downloaded int64
	Total      int64
	Threads    []bool
}

type MTDJob struct {
	ID               string
	JobType          string
	URL              string
	OutputPath       string
	Threads          int
	MetaWrite        time.Duration
	Retries          int
	SkipVerify       bool
	ProgressFunc     func(Progress)
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
}

// DownloadEntry is one item of a batch file.
type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
	Threads    int    `yaml:"threads,omitempty"`
}
