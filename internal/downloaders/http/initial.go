package mtdhttp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tanq16/mtd/internal/downloaders"
	"github.com/tanq16/mtd/internal/utils"
)

type HTTPDownloader struct {
	Fs afero.Fs
}

func (d *HTTPDownloader) ValidateJob(job *utils.MTDJob) error {
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
	log.Info().Str("op", "http/initial").Msgf("job validated for %s", job.URL)
	return nil
}

// BuildJob probes the remote file and settles the output path, preferring
// the server's Content-Disposition name over the URL.
func (d *HTTPDownloader) BuildJob(ctx context.Context, job *utils.MTDJob) error {
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	job.HTTPClientConfig.HighThreadMode = job.Threads > utils.HighThreadCount
	src := NewSource(utils.NewHTTPClient(job.HTTPClientConfig), job.URL)
	info, err := src.Stat(ctx)
	if err != nil {
		return fmt.Errorf("error getting file info: %w", err)
	}

	if job.OutputPath == "" {
		job.OutputPath = info.FileName
	}
	if job.OutputPath == "" {
		job.OutputPath = utils.GenerateFileName(src.url)
	}
	if err := downloaders.ResolveOutputPath(d.Fs, job, info.Size); err != nil {
		return err
	}
	job.URL = src.url
	job.Metadata["fileSize"] = info.Size
	log.Info().Str("op", "http/initial").Int64("size", info.Size).Msgf("job built for %s", job.OutputPath)
	return nil
}

func (d *HTTPDownloader) Download(ctx context.Context, job *utils.MTDJob) error {
	job.HTTPClientConfig.HighThreadMode = job.Threads > utils.HighThreadCount
	src := NewSource(utils.NewHTTPClient(job.HTTPClientConfig), job.URL)
	return downloaders.Run(ctx, d.Fs, src, job, "http")
}
