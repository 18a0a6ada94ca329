package downloaders

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

// Options maps a job onto the options of a download session.
func Options(job *utils.MTDJob, source string) mtd.Options {
	opts := mtd.Options{
		Path:       job.OutputPath,
		URL:        job.URL,
		Source:     source,
		Threads:    job.Threads,
		MetaWrite:  job.MetaWrite,
		Retries:    job.Retries,
		SkipVerify: job.SkipVerify,
	}
	if job.ProgressFunc != nil {
		opts.OnProgress = func(m mtd.Meta) {
			job.ProgressFunc(ProgressOf(m))
		}
	}
	return opts
}

func ProgressOf(m mtd.Meta) utils.Progress {
	threads := make([]bool, len(m.Threads))
	for i := range m.Threads {
		threads[i] = !mtd.IsActive(m, i)
	}
	return utils.Progress{Downloaded: m.Downloaded(), Total: m.TotalBytes, Threads: threads}
}

// Run opens the job's working file, resuming it when present, and drives
// the session until the download is finalized or fails.
func Run(ctx context.Context, fs afero.Fs, src mtd.Source, job *utils.MTDJob, source string) error {
	opts := Options(job, source)
	session, err := mtd.Open(ctx, fs, src, opts)
	if err != nil {
		return err
	}
	defer session.Close()
	if job.ProgressFunc != nil {
		job.ProgressFunc(ProgressOf(session.Meta()))
	}
	m, err := session.Run(ctx)
	if err != nil {
		log.Warn().Str("op", "downloaders/run").Str("job", job.ID).Int64("downloaded", m.Downloaded()).Err(err).Msg("download stopped")
		return fmt.Errorf("download %s: %w", job.OutputPath, err)
	}
	if job.Metadata != nil {
		job.Metadata["totalDownloaded"] = m.TotalBytes
	}
	return nil
}
