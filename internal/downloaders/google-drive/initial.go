package gdrive

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tanq16/mtd/internal/downloaders"
	"github.com/tanq16/mtd/internal/utils"
	"golang.org/x/oauth2"
)

type GDriveDownloader struct {
	Fs afero.Fs
	// Prompt runs the OAuth consent step; defaults to the terminal.
	Prompt    PromptFunc
	TokenPath string
	apiURL    string
}

func (d *GDriveDownloader) ValidateJob(job *utils.MTDJob) error {
	fileID, err := extractFileID(job.URL)
	if err != nil {
		return err
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	job.Metadata["fileID"] = fileID

	apiKey, _ := job.Metadata["apiKey"].(string)
	credentialsFile, _ := job.Metadata["credentialsFile"].(string)
	if apiKey == "" && credentialsFile == "" {
		return fmt.Errorf("either --api-key or --creds must be provided")
	}
	if apiKey != "" && credentialsFile != "" {
		return fmt.Errorf("only one of --api-key or --creds can be provided")
	}
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return fmt.Errorf("credentials file not found: %w", err)
		}
	}
	log.Info().Str("op", "google-drive/initial").Msgf("job validated for %s", job.URL)
	return nil
}

// source builds the Drive source of a job. An OAuth token source is
// created once per job and kept in its metadata.
func (d *GDriveDownloader) source(ctx context.Context, job *utils.MTDJob) (*Source, error) {
	fileID := job.Metadata["fileID"].(string)
	if apiKey, _ := job.Metadata["apiKey"].(string); apiKey != "" {
		log.Debug().Str("op", "google-drive/initial").Msg("using API key")
		return d.withAPI(NewSource(utils.NewHTTPClient(job.HTTPClientConfig), fileID, apiKey)), nil
	}
	ts, ok := job.Metadata["tokenSource"].(oauth2.TokenSource)
	if !ok {
		prompt := d.Prompt
		if prompt == nil {
			prompt = terminalPrompt
		}
		tokenPath := d.TokenPath
		if tokenPath == "" {
			tokenPath = tokenFile
		}
		var err error
		ts, err = tokenSourceFromCredentials(ctx, job.Metadata["credentialsFile"].(string), tokenPath, prompt)
		if err != nil {
			return nil, fmt.Errorf("error getting OAuth token: %w", err)
		}
		job.Metadata["tokenSource"] = ts
	}
	log.Debug().Str("op", "google-drive/initial").Msg("using OAuth token")
	return d.withAPI(NewSource(utils.NewOAuthHTTPClient(job.HTTPClientConfig, ts), fileID, "")), nil
}

func (d *GDriveDownloader) withAPI(src *Source) *Source {
	if d.apiURL != "" {
		src.apiURL = d.apiURL
	}
	return src
}

func (d *GDriveDownloader) BuildJob(ctx context.Context, job *utils.MTDJob) error {
	src, err := d.source(ctx, job)
	if err != nil {
		return err
	}
	info, err := src.Stat(ctx)
	if err != nil {
		return fmt.Errorf("error getting metadata: %w", err)
	}
	if job.OutputPath == "" {
		job.OutputPath = info.FileName
	}
	if err := downloaders.ResolveOutputPath(d.Fs, job, info.Size); err != nil {
		return err
	}
	job.Metadata["fileSize"] = info.Size
	log.Info().Str("op", "google-drive/initial").Msgf("job built for gdrive %s", src.fileID)
	return nil
}

func (d *GDriveDownloader) Download(ctx context.Context, job *utils.MTDJob) error {
	src, err := d.source(ctx, job)
	if err != nil {
		return err
	}
	return downloaders.Run(ctx, d.Fs, src, job, "gdrive")
}
