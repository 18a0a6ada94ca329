package mtd

import (
	"time"
)

const (
	DefaultThreads      = 3
	DefaultMetaWrite    = 300 * time.Millisecond
	DefaultBufferSize   = 64 * 1024
	DefaultRetries      = 5
	DefaultRetryBackoff = 500 * time.Millisecond
	WorkingFileSuffix   = ".mtd"
)

// Options configures a download session. Path, MTDPath, URL, Source, Threads
// and MetaWrite only matter to Create; a resumed session takes them from the
// trailer. The remaining fields apply to both.
//
// A zero Retries means DefaultRetries; use a negative value for none.
type Options struct {
	Path      string
	MTDPath   string
	URL       string
	Source    string
	Threads   int
	MetaWrite time.Duration

	// BufferSize caps the payload of a single chunk.
	BufferSize int
	// Retries is the number of extra attempts per thread after a failed
	// request; negative disables retrying.
	Retries      int
	RetryBackoff time.Duration
	// SkipVerify disables the size/etag comparison on resume.
	SkipVerify bool

	// OnProgress receives every meta produced by the offset tracker.
	OnProgress func(Meta)
	// Now is the persister's clock; defaults to time.Now.
	Now func() time.Time
}

// MergeDefaultOptions fills zero fields with their defaults.
func MergeDefaultOptions(opts Options) Options {
	if opts.MTDPath == "" && opts.Path != "" {
		opts.MTDPath = opts.Path + WorkingFileSuffix
	}
	if opts.Threads < 1 {
		opts.Threads = DefaultThreads
	}
	if opts.MetaWrite <= 0 {
		opts.MetaWrite = DefaultMetaWrite
	}
	if opts.Source == "" {
		opts.Source = "http"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}
