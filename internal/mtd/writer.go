package mtd

import (
	"context"
	"fmt"
	"io"
)

// Written reports a completed positioned write.
type Written struct {
	Thread int
	Bytes  int64
}

// Writer applies chunks to the working file at their absolute position.
type Writer struct {
	file io.WriterAt
}

func NewWriter(file io.WriterAt) *Writer {
	return &Writer{file: file}
}

func (w *Writer) Write(c Chunk) (Written, error) {
	n, err := w.file.WriteAt(c.Data, c.Position)
	if err != nil {
		return Written{Thread: c.Thread, Bytes: int64(n)}, fmt.Errorf("write thread %d at %d: %w", c.Thread, c.Position, err)
	}
	return Written{Thread: c.Thread, Bytes: int64(n)}, nil
}

// Run writes chunks in arrival order until in is closed, emitting one
// Written per chunk and releasing its buffer. Chunks of one thread arrive in
// the order the thread produced them, so each thread's writes stay monotonic.
func (w *Writer) Run(ctx context.Context, in <-chan Chunk, out chan<- Written) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-in:
			if !ok {
				return nil
			}
			written, err := w.Write(c)
			c.Release()
			if err != nil {
				return err
			}
			select {
			case out <- written:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
