package ghrelease

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	mtdhttp "github.com/tanq16/mtd/internal/downloaders/http"
	"github.com/tanq16/mtd/internal/utils"
)

const defaultAPIURL = "https://api.github.com"

// GitReleaseDownloader resolves an asset of a repository's latest release
// and downloads it as a plain HTTP range download, so an interrupted asset
// resumes like any other URL.
type GitReleaseDownloader struct {
	HTTP   *mtdhttp.HTTPDownloader
	apiURL string
}

func (d *GitReleaseDownloader) ValidateJob(job *utils.MTDJob) error {
	owner, repo, err := parseGitHubURL(job.URL)
	if err != nil {
		return err
	}
	job.Metadata["owner"] = owner
	job.Metadata["repo"] = repo
	return nil
}

func (d *GitReleaseDownloader) BuildJob(ctx context.Context, job *utils.MTDJob) error {
	owner := job.Metadata["owner"].(string)
	repo := job.Metadata["repo"].(string)
	pattern, _ := job.Metadata["asset"].(string)
	apiURL := d.apiURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	client := utils.NewHTTPClient(job.HTTPClientConfig)
	release, err := latestRelease(ctx, client, apiURL, owner, repo)
	if err != nil {
		return fmt.Errorf("error fetching release info: %w", err)
	}
	var selected *releaseAsset
	if pattern != "" {
		selected = matchAsset(release.Assets, pattern)
	} else {
		selected = selectPlatformAsset(release.Assets, runtime.GOOS, runtime.GOARCH)
	}
	if selected == nil {
		if pattern != "" {
			return fmt.Errorf("no asset of %s matches %q", release.TagName, pattern)
		}
		return fmt.Errorf("could not automatically select asset for platform %s/%s, use --asset", runtime.GOOS, runtime.GOARCH)
	}
	log.Info().Str("op", "github-release/initial").Str("tag", release.TagName).Int64("size", selected.Size).Msgf("selected asset %s", selected.Name)

	job.URL = selected.DownloadURL
	if job.OutputPath == "" {
		job.OutputPath = selected.Name
	}
	job.Metadata["tagName"] = release.TagName
	return d.HTTP.BuildJob(ctx, job)
}

func (d *GitReleaseDownloader) Download(ctx context.Context, job *utils.MTDJob) error {
	return d.HTTP.Download(ctx, job)
}
