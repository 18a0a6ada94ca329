package mtd

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Persister writes the meta trailer at most once per interval. Updates that
// arrive inside the interval are held back; Flush writes the latest of them.
type Persister struct {
	file        io.WriterAt
	trailerSize int64
	limiter     *rate.Limiter
	now         func() time.Time
	pending     *Meta
	writes      int
}

func NewPersister(file io.WriterAt, trailerSize int64, interval time.Duration, now func() time.Time) *Persister {
	if now == nil {
		now = time.Now
	}
	return &Persister{
		file:        file,
		trailerSize: trailerSize,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		now:         now,
	}
}

// Offer persists m if the interval since the last write has elapsed and
// reports whether it did.
func (p *Persister) Offer(m Meta) (bool, error) {
	if !p.limiter.AllowN(p.now(), 1) {
		p.pending = &m
		return false, nil
	}
	return true, p.write(m)
}

// Force persists m regardless of the interval.
func (p *Persister) Force(m Meta) error {
	return p.write(m)
}

// Flush persists the most recent update that Offer held back, if any.
func (p *Persister) Flush() error {
	if p.pending == nil {
		return nil
	}
	return p.write(*p.pending)
}

// Writes is the number of trailers written so far.
func (p *Persister) Writes() int {
	return p.writes
}

func (p *Persister) write(m Meta) error {
	p.pending = nil
	block, err := EncodeTrailer(m, p.trailerSize)
	if err != nil {
		return err
	}
	if _, err := p.file.WriteAt(block, m.TotalBytes); err != nil {
		return fmt.Errorf("persist meta: %w", err)
	}
	p.writes++
	log.Debug().Str("op", "mtd/persister").Int64("downloaded", m.Downloaded()).Msg("meta persisted")
	return nil
}
