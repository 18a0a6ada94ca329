package mtd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
)

func TestWriterReusesRequesterBuffers(t *testing.T) {
	data := testData(1000)
	src := newMemorySource(data)
	m := NewMeta(MergeDefaultOptions(Options{Path: "/dl/f", Threads: 1}), 1000)
	r := NewRequester(src, Options{BufferSize: 10})

	fs := afero.NewMemMapFs()
	file, err := fs.Create("/dl/f.mtd")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	chunks := make(chan Chunk)
	written := make(chan Written, 200)
	done := make(chan error, 1)
	go func() {
		done <- NewWriter(file).Run(context.Background(), chunks, written)
	}()
	if err := r.Fetch(context.Background(), m, 0, chunks); err != nil {
		t.Fatal(err)
	}
	close(chunks)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	close(written)

	var total int64
	for w := range written {
		total += w.Bytes
	}
	if total != 1000 {
		t.Fatalf("wrote %d bytes, want 1000", total)
	}
	if got := readFile(t, fs, "/dl/f.mtd"); !bytes.Equal(got, data) {
		t.Fatal("written content does not match the source")
	}
}

func TestChunkReleaseWithoutPool(t *testing.T) {
	Chunk{Data: []byte("x")}.Release()
}
