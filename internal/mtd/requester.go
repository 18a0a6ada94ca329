package mtd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Chunk is a piece of a thread's response tagged with where it belongs in
// the working file.
type Chunk struct {
	Thread   int
	Data     []byte
	Position int64

	buf  *[]byte
	pool *sync.Pool
}

// Release hands the chunk's buffer back to its requester. Data must not be
// used afterwards.
func (c Chunk) Release() {
	if c.pool != nil && c.buf != nil {
		c.pool.Put(c.buf)
	}
}

// Requester fetches the remaining bytes of one thread's range and turns the
// response body into positioned chunks.
type Requester struct {
	src          Source
	bufferSize   int
	retries      int
	retryBackoff time.Duration
	buffers      sync.Pool
}

func NewRequester(src Source, opts Options) *Requester {
	opts = MergeDefaultOptions(opts)
	r := &Requester{
		src:          src,
		bufferSize:   opts.BufferSize,
		retries:      opts.Retries,
		retryBackoff: opts.RetryBackoff,
	}
	r.buffers.New = func() any {
		buf := make([]byte, r.bufferSize)
		return &buf
	}
	return r
}

// Fetch requests bytes=Offsets[i]-End for thread i and sends every chunk
// read to out, in order. A failed attempt is retried from the first byte
// that was not yet sent.
func (r *Requester) Fetch(ctx context.Context, m Meta, i int, out chan<- Chunk) error {
	position := m.Offsets[i]
	end := m.Threads[i].End()
	attempt := 0

	fetch := func() error {
		attempt++
		if position > end {
			return nil
		}
		err := r.stream(ctx, i, end, &position, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		log.Warn().Str("op", "mtd/requester").Int("thread", i).Int("attempt", attempt).Err(err).Msgf("request failed at offset %d", position)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryBackoff
	policy.MaxElapsedTime = 0
	err := backoff.Retry(fetch, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.retries)), ctx))
	if err != nil {
		return fmt.Errorf("thread %d: %w", i, err)
	}
	return nil
}

// stream issues one ranged request from *position and forwards its body.
// *position is advanced by every chunk sent.
func (r *Requester) stream(ctx context.Context, thread int, end int64, position *int64, out chan<- Chunk) error {
	start := *position
	resp, err := r.src.Fetch(ctx, start, end)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	log.Debug().Str("op", "mtd/requester").Int("thread", thread).Int("status", resp.Status).
		Str("content-range", resp.ContentRange).Int64("content-length", resp.ContentLength).
		Msgf("response for bytes=%d-%d", start, end)

	body := io.LimitReader(resp.Body, end-start+1)
	for *position <= end {
		bufp := r.buffers.Get().(*[]byte)
		buf := (*bufp)[:min(int64(len(*bufp)), end-*position+1)]
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := Chunk{Thread: thread, Data: buf[:n], Position: *position, buf: bufp, pool: &r.buffers}
			select {
			case out <- chunk:
			case <-ctx.Done():
				r.buffers.Put(bufp)
				return ctx.Err()
			}
			*position += int64(n)
		} else {
			r.buffers.Put(bufp)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return readErr
		}
	}
	if *position <= end {
		return fmt.Errorf("body ended %d bytes short: %w", end-*position+1, io.ErrUnexpectedEOF)
	}
	return nil
}
