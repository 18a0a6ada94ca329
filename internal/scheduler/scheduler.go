package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	ghrelease "github.com/tanq16/mtd/internal/downloaders/github-release"
	gdrive "github.com/tanq16/mtd/internal/downloaders/google-drive"
	mtdhttp "github.com/tanq16/mtd/internal/downloaders/http"
	"github.com/tanq16/mtd/internal/downloaders/s3"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/output"
	"github.com/tanq16/mtd/internal/utils"
)

// Registry maps job types to their downloader implementations.
type Registry map[string]utils.Downloader

func DefaultRegistry(fs afero.Fs) Registry {
	httpDownloader := &mtdhttp.HTTPDownloader{Fs: fs}
	return Registry{
		"http":           httpDownloader,
		"s3":             &s3.S3Downloader{Fs: fs},
		"google-drive":   &gdrive.GDriveDownloader{Fs: fs},
		"github-release": &ghrelease.GitReleaseDownloader{HTTP: httpDownloader},
	}
}

// Run executes jobs on numWorkers workers and reports every job through a
// live display. It returns an error when any job failed.
func Run(ctx context.Context, jobs []utils.MTDJob, numWorkers int, registry Registry) error {
	outputMgr := output.NewManager()
	outputMgr.StartDisplay()

	jobCh := make(chan *utils.MTDJob, len(jobs))
	for i := range jobs {
		jobCh <- &jobs[i]
	}
	close(jobCh)

	var wg sync.WaitGroup
	for range max(numWorkers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processJobs(ctx, jobCh, outputMgr, registry)
		}()
	}
	wg.Wait()
	outputMgr.StopDisplay()

	_, failed, total := outputMgr.Summary()
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, total)
	}
	return nil
}

func processJobs(ctx context.Context, jobCh <-chan *utils.MTDJob, outputMgr *output.Manager, registry Registry) {
	for job := range jobCh {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}
		funcID := outputMgr.RegisterJob(job.URL)
		if err := processJob(ctx, job, outputMgr, funcID, registry); err != nil {
			log.Error().Str("op", "scheduler").Str("job", job.ID).Err(err).Msgf("%s job failed", job.JobType)
			outputMgr.ReportError(funcID, err)
			continue
		}
		outputMgr.Complete(funcID, fmt.Sprintf("Downloaded %s", job.OutputPath))
	}
}

func processJob(ctx context.Context, job *utils.MTDJob, outputMgr *output.Manager, funcID int, registry Registry) error {
	downloader, exists := registry[job.JobType]
	if !exists {
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	outputMgr.SetStatus(funcID, "pending")
	outputMgr.SetMessage(funcID, fmt.Sprintf("Validating %s job", job.JobType))
	if err := downloader.ValidateJob(job); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	outputMgr.SetMessage(funcID, fmt.Sprintf("Building %s job", job.JobType))
	if err := downloader.BuildJob(ctx, job); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	verb := "Downloading"
	if resume, _ := job.Metadata["resume"].(bool); resume {
		verb = "Resuming"
	}
	outputMgr.SetStatus(funcID, "active")
	outputMgr.SetMessage(funcID, fmt.Sprintf("%s %s", verb, job.OutputPath))
	job.ProgressFunc = func(p utils.Progress) {
		outputMgr.SetProgress(funcID, p.Downloaded, p.Total, p.Threads)
	}
	err := downloader.Download(ctx, job)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, mtd.ErrIncomplete)) {
		return fmt.Errorf("%w; resume with: mtd resume %s", err, job.OutputPath+mtd.WorkingFileSuffix)
	}
	return err
}
