package mtd

import (
	"context"
	"io"
)

// RemoteInfo is what a Source reports about the remote resource.
// Size is -1 when the remote did not report a usable length.
type RemoteInfo struct {
	Size     int64
	ETag     string
	FileName string
}

// Response is one ranged response. Body yields the bytes starting at the
// requested start offset.
type Response struct {
	Body          io.ReadCloser
	Status        int
	ContentLength int64
	ContentRange  string
}

// Source issues the remote requests of a download: a HEAD-equivalent probe
// and ranged reads with inclusive bounds.
type Source interface {
	Stat(ctx context.Context) (*RemoteInfo, error)
	Fetch(ctx context.Context, start, end int64) (*Response, error)
}
