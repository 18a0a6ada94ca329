package mtd

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
)

func TestFinalizerTruncatesAndRenames(t *testing.T) {
	fs := &renameCountingFs{Fs: afero.NewMemMapFs()}
	m := NewMeta(MergeDefaultOptions(Options{Path: "/dl/file.bin", Threads: 2}), 100)
	for i, r := range m.Threads {
		m = m.Advance(i, r.Len())
	}
	content := testData(100)

	file, err := fs.Create(m.MTDPath)
	if err != nil {
		t.Fatal(err)
	}
	file.WriteAt(content, 0)
	size, _ := TrailerSize(m)
	if err := NewPersister(file, size, 0, nil).Force(m); err != nil {
		t.Fatal(err)
	}

	f := NewFinalizer(fs)
	if err := f.Finalize(file, m); err != nil {
		t.Fatal(err)
	}
	if err := f.Finalize(file, m); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if !f.Done() || fs.renames != 1 {
		t.Fatalf("done %v after %d renames, want one rename", f.Done(), fs.renames)
	}
	if ok, _ := afero.Exists(fs, m.MTDPath); ok {
		t.Fatal("working file still exists")
	}
	if got := readFile(t, fs, m.Path); !bytes.Equal(got, content) {
		t.Fatalf("final file has %d bytes, want the %d content bytes", len(got), len(content))
	}
}

func TestCompletionDetectorFiresOnce(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 2}), 10)
	var d CompletionDetector
	steps := []Meta{m.Advance(0, 5), m.Advance(0, 5).Advance(1, 5)}
	steps = append(steps, steps[1], steps[1])

	fired := 0
	for _, s := range steps {
		if d.Observe(s) {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("detector fired %d times, want 1", fired)
	}
}

func TestOffsetTrackerRun(t *testing.T) {
	seed := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 2}), 10)
	in := make(chan Written, 3)
	out := make(chan Meta, 3)
	in <- Written{Thread: 1, Bytes: 2}
	in <- Written{Thread: 0, Bytes: 5}
	in <- Written{Thread: 1, Bytes: 3}
	close(in)
	NewOffsetTracker(seed).Run(in, out)

	var last Meta
	n := 0
	for m := range out {
		last = m
		n++
	}
	if n != 3 {
		t.Fatalf("tracker emitted %d metas, want 3", n)
	}
	if !Complete(last) || seed.Offsets[0] != 0 {
		t.Fatalf("last = %v, seed = %v", last.Offsets, seed.Offsets)
	}
}
