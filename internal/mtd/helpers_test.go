package mtd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// memorySource serves ranges of an in-memory file and records every request.
type memorySource struct {
	data []byte
	size int64
	etag string

	mu       sync.Mutex
	requests []Range
	// cuts truncates the body of the next response for a start offset.
	cuts map[int64]int
	// delays slows every read of responses whose start lies in a thread.
	delay func(start int64) time.Duration
	// block holds responses starting at these offsets after sending half the body.
	block map[int64]chan struct{}
	fail  map[int64]error
}

func newMemorySource(data []byte) *memorySource {
	return &memorySource{data: data, size: int64(len(data)), etag: "v1"}
}

func (s *memorySource) Stat(ctx context.Context) (*RemoteInfo, error) {
	return &RemoteInfo{Size: s.size, ETag: s.etag}, nil
}

func (s *memorySource) Fetch(ctx context.Context, start, end int64) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Range{start, end})
	if err, ok := s.fail[start]; ok {
		delete(s.fail, start)
		return nil, err
	}
	body := s.data[start : end+1]
	if cut, ok := s.cuts[start]; ok {
		delete(s.cuts, start)
		body = body[:cut]
	}
	var r io.Reader = bytes.NewReader(body)
	if s.delay != nil {
		r = &slowReader{r: r, step: 64, delay: s.delay(start)}
	}
	if ch, ok := s.block[start]; ok {
		half := len(body) / 2
		r = io.MultiReader(bytes.NewReader(body[:half]), &blockingReader{ctx: ctx, release: ch}, bytes.NewReader(body[half:]))
	}
	return &Response{
		Body:          io.NopCloser(r),
		Status:        206,
		ContentLength: int64(len(body)),
		ContentRange:  fmt.Sprintf("bytes %d-%d/%d", start, end, len(s.data)),
	}, nil
}

func (s *memorySource) Requests() []Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Range(nil), s.requests...)
}

type slowReader struct {
	r     io.Reader
	step  int
	delay time.Duration
}

func (r *slowReader) Read(p []byte) (int, error) {
	time.Sleep(r.delay)
	if len(p) > r.step {
		p = p[:r.step]
	}
	return r.r.Read(p)
}

type blockingReader struct {
	ctx     context.Context
	release chan struct{}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	case <-r.release:
		return 0, io.EOF
	}
}

// renameCountingFs counts renames to check finalization happens once.
type renameCountingFs struct {
	afero.Fs
	mu      sync.Mutex
	renames int
}

func (fs *renameCountingFs) Rename(oldname, newname string) error {
	fs.mu.Lock()
	fs.renames++
	fs.mu.Unlock()
	return fs.Fs.Rename(oldname, newname)
}

func testOptions(dir string) Options {
	return Options{
		Path:         dir + "/file.bin",
		URL:          "http://example.invalid/file.bin",
		Threads:      3,
		MetaWrite:    300 * time.Millisecond,
		BufferSize:   100,
		RetryBackoff: time.Millisecond,
	}
}

func readFile(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
