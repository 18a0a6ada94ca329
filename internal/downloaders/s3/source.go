package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tanq16/mtd/internal/mtd"
)

// Source reads one object with ranged GetObject calls.
type Source struct {
	api    API
	bucket string
	key    string
}

func NewSource(api API, bucket, key string) *Source {
	return &Source{api: api, bucket: bucket, key: key}
}

func (s *Source) Stat(ctx context.Context) (*mtd.RemoteInfo, error) {
	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, statusError("head object", err)
	}
	info := &mtd.RemoteInfo{Size: -1, ETag: aws.ToString(head.ETag)}
	if head.ContentLength != nil {
		info.Size = *head.ContentLength
	}
	return info, nil
}

func (s *Source) Fetch(ctx context.Context, start, end int64) (*mtd.Response, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, statusError("get object", err)
	}
	return &mtd.Response{
		Body:          out.Body,
		Status:        206,
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentRange:  aws.ToString(out.ContentRange),
	}, nil
}
