package mtd

import (
	"fmt"
	"slices"
)

// Range is an inclusive [start, end] byte range owned by one thread.
// It serializes as a two element JSON array.
type Range [2]int64

func (r Range) Start() int64 { return r[0] }
func (r Range) End() int64   { return r[1] }

// Len is the number of bytes in the range; empty ranges have End == Start-1.
func (r Range) Len() int64 { return r[1] - r[0] + 1 }

// Meta is the resumable descriptor of a download. It is persisted as the
// trailer of the working file and treated as an immutable value: progress
// produces a new Meta through Advance.
type Meta struct {
	URL        string  `json:"url"`
	Source     string  `json:"source"`
	ETag       string  `json:"etag,omitempty"`
	Path       string  `json:"path"`
	MTDPath    string  `json:"mtdPath"`
	Range      int     `json:"range"`
	MetaWrite  int     `json:"metaWrite"`
	TotalBytes int64   `json:"totalBytes"`
	Threads    []Range `json:"threads"`
	Offsets    []int64 `json:"offsets"`
}

// Split partitions [0, totalBytes) into count contiguous inclusive ranges.
// Ranges past the end of a small file come out empty as [totalBytes, totalBytes-1].
func Split(totalBytes int64, count int) []Range {
	n := int64(count)
	delta := (totalBytes + n - 1) / n
	ranges := make([]Range, count)
	for i := range n {
		start := min(i*delta, totalBytes)
		end := min((i+1)*delta-1, totalBytes-1)
		ranges[i] = Range{start, end}
	}
	ranges[count-1][1] = totalBytes - 1
	return ranges
}

// NewMeta builds the initial meta of a fresh download with every cursor at
// the start of its range.
func NewMeta(opts Options, totalBytes int64) Meta {
	threads := Split(totalBytes, opts.Threads)
	offsets := make([]int64, len(threads))
	for i, r := range threads {
		offsets[i] = r.Start()
	}
	return Meta{
		URL:        opts.URL,
		Source:     opts.Source,
		Path:       opts.Path,
		MTDPath:    opts.MTDPath,
		Range:      opts.Threads,
		MetaWrite:  int(opts.MetaWrite.Milliseconds()),
		TotalBytes: totalBytes,
		Threads:    threads,
		Offsets:    offsets,
	}
}

// Advance returns a copy of m with thread i's cursor moved forward by n bytes.
func (m Meta) Advance(i int, n int64) Meta {
	m.Offsets = slices.Clone(m.Offsets)
	m.Offsets[i] += n
	return m
}

// Downloaded is the number of content bytes written across all threads.
func (m Meta) Downloaded() int64 {
	var total int64
	for i, r := range m.Threads {
		total += m.Offsets[i] - r.Start()
	}
	return total
}

// IsActive reports whether thread i still has bytes to fetch.
func IsActive(m Meta, i int) bool {
	r := m.Threads[i]
	return r.Start() <= m.Offsets[i] && m.Offsets[i] <= r.End()
}

// ActiveThreads lists, in ascending order, the threads that still need a request.
func ActiveThreads(m Meta) []int {
	var active []int
	for i := range m.Threads {
		if IsActive(m, i) {
			active = append(active, i)
		}
	}
	return active
}

// Complete reports whether every cursor has moved past the last byte of its range.
func Complete(m Meta) bool {
	for i, r := range m.Threads {
		if m.Offsets[i] < r.End()+1 {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants a meta read from disk must hold.
func (m Meta) Validate() error {
	if m.Range < 1 {
		return fmt.Errorf("range must be positive, got %d", m.Range)
	}
	if m.TotalBytes < 0 {
		return fmt.Errorf("negative totalBytes %d", m.TotalBytes)
	}
	if len(m.Threads) != m.Range || len(m.Offsets) != m.Range {
		return fmt.Errorf("expected %d threads and offsets, got %d and %d", m.Range, len(m.Threads), len(m.Offsets))
	}
	if m.Path == "" || m.MTDPath == "" {
		return fmt.Errorf("missing path or mtdPath")
	}
	next := int64(0)
	for i, r := range m.Threads {
		if r.Start() != next {
			return fmt.Errorf("thread %d starts at %d, expected %d", i, r.Start(), next)
		}
		if r.End() < r.Start()-1 {
			return fmt.Errorf("thread %d has inverted range [%d,%d]", i, r.Start(), r.End())
		}
		if m.Offsets[i] < r.Start() || m.Offsets[i] > r.End()+1 {
			return fmt.Errorf("thread %d offset %d outside [%d,%d]", i, m.Offsets[i], r.Start(), r.End()+1)
		}
		next = r.End() + 1
	}
	if next != m.TotalBytes {
		return fmt.Errorf("threads cover %d bytes, expected %d", next, m.TotalBytes)
	}
	return nil
}
