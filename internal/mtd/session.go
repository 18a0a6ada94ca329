package mtd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Session is one Create-or-Resume run of a download, from bootstrap to
// finalization or failure.
type Session struct {
	ID          string
	fs          afero.Fs
	file        afero.File
	src         Source
	meta        Meta
	trailerSize int64
	opts        Options
	log         zerolog.Logger
}

// Create starts a new download: it probes the remote size, builds the
// initial meta and writes it as the trailer of a new working file.
func Create(ctx context.Context, fs afero.Fs, src Source, opts Options) (*Session, error) {
	opts = MergeDefaultOptions(opts)
	info, err := src.Stat(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe remote file: %w", err)
	}
	if info.Size < 0 {
		return nil, ErrUnknownFileSize
	}
	meta := NewMeta(opts, info.Size)
	meta.ETag = info.ETag
	trailerSize, err := TrailerSize(meta)
	if err != nil {
		return nil, err
	}

	file, err := fs.OpenFile(opts.MTDPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create working file: %w", err)
	}
	s := newSession(fs, file, src, meta, trailerSize, opts)
	if err := NewPersister(file, trailerSize, opts.MetaWrite, opts.Now).Force(meta); err != nil {
		file.Close()
		fs.Remove(opts.MTDPath)
		return nil, err
	}
	s.log.Info().Int64("size", meta.TotalBytes).Int("threads", meta.Range).Msgf("created %s", meta.MTDPath)
	return s, nil
}

// Resume reopens an interrupted download from the trailer of its working
// file. The file is not modified if the trailer cannot be read.
func Resume(ctx context.Context, fs afero.Fs, src Source, mtdPath string, opts Options) (*Session, error) {
	opts = MergeDefaultOptions(opts)
	file, err := fs.OpenFile(mtdPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open working file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat working file: %w", err)
	}
	meta, trailerSize, err := ReadTrailer(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	if meta.MetaWrite > 0 {
		opts.MetaWrite = time.Duration(meta.MetaWrite) * time.Millisecond
	}
	if !opts.SkipVerify {
		if err := verifySource(ctx, src, meta); err != nil {
			file.Close()
			return nil, err
		}
	}
	s := newSession(fs, file, src, meta, trailerSize, opts)
	s.log.Info().Int64("downloaded", meta.Downloaded()).Int64("size", meta.TotalBytes).
		Ints("active", ActiveThreads(meta)).Msgf("resuming %s", mtdPath)
	return s, nil
}

// Open resumes the download if its working file exists and creates it otherwise.
func Open(ctx context.Context, fs afero.Fs, src Source, opts Options) (*Session, error) {
	opts = MergeDefaultOptions(opts)
	exists, err := afero.Exists(fs, opts.MTDPath)
	if err != nil {
		return nil, fmt.Errorf("check working file: %w", err)
	}
	if exists {
		return Resume(ctx, fs, src, opts.MTDPath, opts)
	}
	return Create(ctx, fs, src, opts)
}

func verifySource(ctx context.Context, src Source, m Meta) error {
	info, err := src.Stat(ctx)
	if err != nil {
		return fmt.Errorf("probe remote file: %w", err)
	}
	if info.Size != m.TotalBytes {
		return fmt.Errorf("%w: size %d, recorded %d", ErrSourceChanged, info.Size, m.TotalBytes)
	}
	if m.ETag != "" && info.ETag != "" && m.ETag != info.ETag {
		return fmt.Errorf("%w: etag %s, recorded %s", ErrSourceChanged, info.ETag, m.ETag)
	}
	return nil
}

func newSession(fs afero.Fs, file afero.File, src Source, m Meta, trailerSize int64, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		ID:          id,
		fs:          fs,
		file:        file,
		src:         src,
		meta:        m,
		trailerSize: trailerSize,
		opts:        opts,
		log:         log.With().Str("op", "mtd/session").Str("session", id).Logger(),
	}
}

// Meta returns the latest meta known to the session.
func (s *Session) Meta() Meta {
	return s.meta
}

// Run downloads every incomplete thread and finalizes the file once all
// ranges are written. On failure or cancellation the last tracked meta is
// persisted so the download can be resumed.
func (s *Session) Run(ctx context.Context) (Meta, error) {
	if s.file == nil {
		return s.meta, errors.New("mtd: session is closed")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	seed := s.meta
	active := ActiveThreads(seed)
	chunks := make(chan Chunk, len(active))
	written := make(chan Written, len(active))
	metas := make(chan Meta, 1)

	g, gctx := errgroup.WithContext(ctx)
	requester := NewRequester(s.src, s.opts)
	var fetchers sync.WaitGroup
	for _, i := range active {
		fetchers.Add(1)
		g.Go(func() error {
			defer fetchers.Done()
			return requester.Fetch(gctx, seed, i, chunks)
		})
	}
	go func() {
		fetchers.Wait()
		close(chunks)
	}()
	writer := NewWriter(s.file)
	g.Go(func() error {
		defer close(written)
		return writer.Run(gctx, chunks, written)
	})
	go NewOffsetTracker(seed).Run(written, metas)

	finalized, loopErr := s.consume(metas, cancel)
	runErr := g.Wait()

	switch {
	case finalized:
		return s.meta, nil
	case loopErr != nil:
		return s.meta, loopErr
	case runErr != nil:
		return s.meta, runErr
	default:
		return s.meta, ErrIncomplete
	}
}

// consume is the single reader of tracked metas: it reports progress,
// persists the trailer and finalizes on completion.
func (s *Session) consume(metas <-chan Meta, cancel context.CancelFunc) (bool, error) {
	persister := NewPersister(s.file, s.trailerSize, s.opts.MetaWrite, s.opts.Now)
	finalizer := NewFinalizer(s.fs)
	var detector CompletionDetector
	var failed error

	finish := func(m Meta) {
		if err := finalizer.Finalize(s.file, m); err != nil {
			failed = err
			cancel()
			return
		}
		s.file = nil
	}
	if detector.Observe(s.meta) {
		finish(s.meta)
	}

	for m := range metas {
		s.meta = m
		if failed != nil || finalizer.Done() {
			continue
		}
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(m)
		}
		if detector.Observe(m) {
			finish(m)
			continue
		}
		if _, err := persister.Offer(m); err != nil {
			failed = err
			cancel()
		}
	}

	if finalizer.Done() {
		return true, nil
	}
	if failed != nil {
		return false, failed
	}
	if err := persister.Flush(); err != nil {
		return false, err
	}
	s.log.Info().Int64("downloaded", s.meta.Downloaded()).Int("trailer-writes", persister.Writes()).Msg("session stopped before completion")
	return false, nil
}

// Close releases the working file. It is a no-op after finalization.
func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
