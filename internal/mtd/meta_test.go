package mtd

import (
	"reflect"
	"testing"
	"time"
)

func TestSplit(t *testing.T) {
	got := Split(1000, 3)
	want := []Range{{0, 333}, {334, 667}, {668, 999}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split(1000, 3) = %v, want %v", got, want)
	}
}

func TestSplitPartitionsContent(t *testing.T) {
	sizes := []int64{0, 1, 2, 3, 7, 100, 999, 1000, 1001, 1 << 20, 5_000_000_017}
	for _, size := range sizes {
		for count := 1; count <= 17; count++ {
			ranges := Split(size, count)
			if len(ranges) != count {
				t.Fatalf("Split(%d, %d) returned %d ranges", size, count, len(ranges))
			}
			next := int64(0)
			var total int64
			for i, r := range ranges {
				if r.Start() != next {
					t.Fatalf("Split(%d, %d)[%d] starts at %d, want %d", size, count, i, r.Start(), next)
				}
				if r.Len() < 0 {
					t.Fatalf("Split(%d, %d)[%d] = %v has negative length", size, count, i, r)
				}
				total += r.Len()
				next = r.End() + 1
			}
			if total != size || ranges[count-1].End() != size-1 {
				t.Fatalf("Split(%d, %d) covers %d bytes ending at %d", size, count, total, ranges[count-1].End())
			}
		}
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "out/file.bin", URL: "http://x/file.bin", Threads: 3}), 1000)
	if m.MTDPath != "out/file.bin.mtd" {
		t.Errorf("MTDPath = %q", m.MTDPath)
	}
	if m.Range != 3 || m.MetaWrite != 300 || m.Source != "http" {
		t.Errorf("unexpected header fields: %+v", m)
	}
	if !reflect.DeepEqual(m.Offsets, []int64{0, 334, 668}) {
		t.Errorf("Offsets = %v", m.Offsets)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if m.Downloaded() != 0 || Complete(m) {
		t.Errorf("fresh meta reports progress")
	}
}

func TestAdvanceDoesNotMutate(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 2}), 10)
	next := m.Advance(1, 3)
	if m.Offsets[1] != 5 {
		t.Fatalf("original offsets changed: %v", m.Offsets)
	}
	if next.Offsets[1] != 8 || next.Downloaded() != 3 {
		t.Fatalf("Advance = %v, downloaded %d", next.Offsets, next.Downloaded())
	}
}

func TestCompleteAndActive(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 3}), 1000)
	m.Offsets = []int64{334, 400, 999}

	if Complete(m) {
		t.Fatal("partial meta reported complete")
	}
	if got := ActiveThreads(m); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("ActiveThreads = %v, want [1 2]", got)
	}

	m.Offsets = []int64{334, 668, 999}
	if Complete(m) {
		t.Fatal("meta with one byte left reported complete")
	}
	m.Offsets = []int64{334, 668, 1000}
	if !Complete(m) {
		t.Fatal("finished meta not complete")
	}
	if got := ActiveThreads(m); len(got) != 0 {
		t.Fatalf("finished meta has active threads %v", got)
	}
}

func TestEmptyFileIsComplete(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 4}), 0)
	if !Complete(m) {
		t.Fatalf("empty download not complete: %+v", m)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	base := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 2}), 10)
	tests := []struct {
		name   string
		mutate func(m *Meta)
	}{
		{"zero range", func(m *Meta) { m.Range = 0 }},
		{"offset count", func(m *Meta) { m.Offsets = m.Offsets[:1] }},
		{"gap", func(m *Meta) { m.Threads = []Range{{0, 3}, {5, 9}} }},
		{"short cover", func(m *Meta) { m.TotalBytes = 11 }},
		{"offset past end", func(m *Meta) { m.Offsets = []int64{0, 11} }},
		{"offset before start", func(m *Meta) { m.Offsets = []int64{0, 2} }},
		{"missing path", func(m *Meta) { m.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base.Advance(0, 0)
			m.Threads = append([]Range(nil), base.Threads...)
			tt.mutate(&m)
			if err := m.Validate(); err == nil {
				t.Fatalf("Validate accepted %+v", m)
			}
		})
	}
}

func TestMergeDefaultOptions(t *testing.T) {
	opts := MergeDefaultOptions(Options{Path: "a.bin"})
	if opts.Threads != DefaultThreads || opts.MetaWrite != DefaultMetaWrite || opts.BufferSize != DefaultBufferSize {
		t.Errorf("defaults not applied: %+v", opts)
	}
	if opts.Retries != DefaultRetries || opts.Now == nil {
		t.Errorf("retry defaults not applied: %+v", opts)
	}
	opts = MergeDefaultOptions(Options{Path: "a.bin", MTDPath: "b.mtd", Retries: -1, MetaWrite: time.Second})
	if opts.MTDPath != "b.mtd" || opts.Retries != 0 || opts.MetaWrite != time.Second {
		t.Errorf("explicit values overridden: %+v", opts)
	}
}
