package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

// API is the part of the S3 client the downloader uses.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type object struct {
	Key  string
	Size int64
}

func newClient(ctx context.Context, profile, endpoint string, httpCfg utils.HTTPClientConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeAdaptive),
		config.WithHTTPClient(utils.NewHTTPClient(httpCfg).StdClient()),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func parseS3URL(url string) (string, string, error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL %q: expected s3://bucket/key", url)
	}
	parts := strings.SplitN(strings.TrimPrefix(url, "s3://"), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q: missing bucket", url)
	}
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	return parts[0], key, nil
}

// statusError turns an SDK failure with an HTTP status into mtd's status
// error so the requester can tell throttling from missing objects.
func statusError(op string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return fmt.Errorf("%s: %w", op, &mtd.StatusError{Code: re.HTTPStatusCode()})
	}
	return fmt.Errorf("%s: %w", op, err)
}

func listObjects(ctx context.Context, api API, bucket, prefix string) ([]object, error) {
	var objects []object
	paginator := s3.NewListObjectsV2Paginator(api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, statusError("list objects", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.Size == nil {
				continue
			}
			if *obj.Size == 0 && strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			objects = append(objects, object{Key: *obj.Key, Size: *obj.Size})
		}
	}
	return objects, nil
}
