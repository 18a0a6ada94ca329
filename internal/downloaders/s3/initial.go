package s3

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tanq16/mtd/internal/downloaders"
	"github.com/tanq16/mtd/internal/utils"
)

type S3Downloader struct {
	Fs afero.Fs
	// NewAPI overrides how the S3 client is built.
	NewAPI func(ctx context.Context, job *utils.MTDJob) (API, error)
}

func (d *S3Downloader) api(ctx context.Context, job *utils.MTDJob) (API, error) {
	if d.NewAPI != nil {
		return d.NewAPI(ctx, job)
	}
	profile, _ := job.Metadata["profile"].(string)
	endpoint, _ := job.Metadata["endpoint"].(string)
	client, err := newClient(ctx, profile, endpoint, job.HTTPClientConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating S3 client: %w", err)
	}
	return client, nil
}

func (d *S3Downloader) ValidateJob(job *utils.MTDJob) error {
	bucket, key, err := parseS3URL(job.URL)
	if err != nil {
		return err
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	job.Metadata["bucket"] = bucket
	job.Metadata["key"] = key
	log.Info().Str("op", "s3/initial").Msgf("job validated for s3://%s/%s", bucket, key)
	return nil
}

// BuildJob decides whether the URL names one object or a prefix and
// resolves the output path accordingly.
func (d *S3Downloader) BuildJob(ctx context.Context, job *utils.MTDJob) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	api, err := d.api(ctx, job)
	if err != nil {
		return err
	}

	fileType := "file"
	var size int64 = -1
	if info, err := NewSource(api, bucket, key).Stat(ctx); err == nil {
		size = info.Size
	} else {
		result, listErr := api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(key),
			MaxKeys: aws.Int32(1),
		})
		if listErr != nil || len(result.Contents) == 0 {
			return fmt.Errorf("error getting S3 object info: %w", err)
		}
		fileType = "folder"
	}
	job.Metadata["fileType"] = fileType

	if job.OutputPath == "" {
		parts := strings.Split(strings.TrimSuffix(key, "/"), "/")
		job.OutputPath = parts[len(parts)-1]
		if job.OutputPath == "" {
			job.OutputPath = bucket
		}
	}
	if fileType == "folder" {
		path, err := utils.NormalizePath(job.OutputPath)
		if err != nil {
			return err
		}
		job.OutputPath = path
	} else if err := downloaders.ResolveOutputPath(d.Fs, job, size); err != nil {
		return err
	}
	log.Info().Str("op", "s3/initial").Str("type", fileType).Msgf("job built for s3://%s/%s", bucket, key)
	return nil
}

func (d *S3Downloader) Download(ctx context.Context, job *utils.MTDJob) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	api, err := d.api(ctx, job)
	if err != nil {
		return err
	}
	if job.Metadata["fileType"] == "folder" {
		return d.downloadFolder(ctx, api, job, bucket, key)
	}
	log.Info().Str("op", "s3/download").Msgf("starting file download for s3://%s/%s", bucket, key)
	return downloaders.Run(ctx, d.Fs, NewSource(api, bucket, key), job, "s3")
}

// downloadFolder fetches every object under prefix, one session at a time,
// mirroring the key layout below the output directory.
func (d *S3Downloader) downloadFolder(ctx context.Context, api API, job *utils.MTDJob, bucket, prefix string) error {
	objects, err := listObjects(ctx, api, bucket, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("no objects found in s3://%s/%s", bucket, prefix)
	}
	var total, done int64
	for _, obj := range objects {
		total += obj.Size
	}
	log.Info().Str("op", "s3/download").Int("objects", len(objects)).Msgf("starting folder download for s3://%s/%s", bucket, prefix)

	for _, obj := range objects {
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, prefix), "/")
		if rel == "" {
			rel = filepath.Base(obj.Key)
		}
		path := filepath.Join(job.OutputPath, filepath.FromSlash(rel))
		if err := d.Fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
		if ok, _ := afero.Exists(d.Fs, path); ok {
			done += obj.Size
			continue
		}
		objJob := *job
		objJob.URL = fmt.Sprintf("s3://%s/%s", bucket, obj.Key)
		objJob.OutputPath = path
		objJob.Metadata = nil
		if job.ProgressFunc != nil {
			offset := done
			objJob.ProgressFunc = func(p utils.Progress) {
				job.ProgressFunc(utils.Progress{Downloaded: offset + p.Downloaded, Total: total, Threads: p.Threads})
			}
		}
		if err := downloaders.Run(ctx, d.Fs, NewSource(api, bucket, obj.Key), &objJob, "s3"); err != nil {
			return err
		}
		done += obj.Size
	}
	return nil
}
