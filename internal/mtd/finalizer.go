package mtd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Finalizer drops the trailer of a completed download and moves the working
// file to its destination. It acts at most once.
type Finalizer struct {
	fs   afero.Fs
	done bool
}

func NewFinalizer(fs afero.Fs) *Finalizer {
	return &Finalizer{fs: fs}
}

// Finalize truncates file to the content length, closes it and renames
// MTDPath to Path. Calls after a successful one do nothing.
func (f *Finalizer) Finalize(file afero.File, m Meta) error {
	if f.done {
		return nil
	}
	if err := file.Truncate(m.TotalBytes); err != nil {
		return fmt.Errorf("truncate meta trailer: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync working file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close working file: %w", err)
	}
	if err := f.fs.Rename(m.MTDPath, m.Path); err != nil {
		return fmt.Errorf("rename %s: %w", m.MTDPath, err)
	}
	f.done = true
	log.Info().Str("op", "mtd/finalizer").Msgf("download finalized to %s", m.Path)
	return nil
}

func (f *Finalizer) Done() bool {
	return f.done
}
