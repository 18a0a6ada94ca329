package mtd

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(d time.Duration, from time.Time) { c.now = from.Add(d) }

func newTestPersister(t *testing.T, m Meta) (*Persister, afero.File, *fakeClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	file, err := fs.Create(m.MTDPath)
	if err != nil {
		t.Fatal(err)
	}
	size, err := TrailerSize(m)
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewPersister(file, size, 300*time.Millisecond, clock.Now), file, clock
}

func trailerOf(t *testing.T, file afero.File) Meta {
	t.Helper()
	stat, err := file.Stat()
	if err != nil {
		t.Fatal(err)
	}
	m, _, err := ReadTrailer(file, stat.Size())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPersisterThrottle(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "file.bin", Threads: 3}), 1000)
	p, file, clock := newTestPersister(t, m)
	start := clock.now

	first, second, third := m.Advance(0, 10), m.Advance(0, 20), m.Advance(0, 30)

	if ok, err := p.Offer(first); err != nil || !ok {
		t.Fatalf("first Offer = %v, %v; want written", ok, err)
	}
	clock.Set(50*time.Millisecond, start)
	if ok, err := p.Offer(second); err != nil || ok {
		t.Fatalf("second Offer = %v, %v; want skipped", ok, err)
	}
	clock.Set(310*time.Millisecond, start)
	if ok, err := p.Offer(third); err != nil || !ok {
		t.Fatalf("third Offer = %v, %v; want written", ok, err)
	}
	if p.Writes() != 2 {
		t.Fatalf("Writes = %d, want 2", p.Writes())
	}
	if got := trailerOf(t, file).Offsets[0]; got != 30 {
		t.Fatalf("persisted offset = %d, want 30", got)
	}
}

func TestPersisterFlush(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "file.bin", Threads: 2}), 100)
	p, file, clock := newTestPersister(t, m)

	p.Offer(m.Advance(1, 1))
	clock.Set(time.Millisecond, clock.now)
	p.Offer(m.Advance(1, 2))
	p.Offer(m.Advance(1, 3))
	if p.Writes() != 1 {
		t.Fatalf("Writes = %d, want 1", p.Writes())
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := trailerOf(t, file).Offsets[1]; got != 53 {
		t.Fatalf("flushed offset = %d, want 53", got)
	}
	if err := p.Flush(); err != nil || p.Writes() != 2 {
		t.Fatalf("second Flush wrote again: writes %d, err %v", p.Writes(), err)
	}
}

func TestPersisterForce(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "file.bin", Threads: 2}), 100)
	p, file, _ := newTestPersister(t, m)

	for i := int64(1); i <= 3; i++ {
		if err := p.Force(m.Advance(0, i)); err != nil {
			t.Fatal(err)
		}
	}
	if p.Writes() != 3 {
		t.Fatalf("Writes = %d, want 3", p.Writes())
	}
	stat, _ := file.Stat()
	if stat.Size() != 100+512 {
		t.Fatalf("file size = %d, want content plus one trailer block", stat.Size())
	}
	if got := trailerOf(t, file).Offsets[0]; got != 3 {
		t.Fatalf("forced offset = %d, want 3", got)
	}
}
