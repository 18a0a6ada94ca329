package mtd

// OffsetTracker folds write reports into successive meta values. It is the
// only place offsets are advanced.
type OffsetTracker struct {
	meta Meta
}

func NewOffsetTracker(seed Meta) *OffsetTracker {
	return &OffsetTracker{meta: seed}
}

// Apply advances the written thread's cursor and returns the new meta.
func (t *OffsetTracker) Apply(w Written) Meta {
	t.meta = t.meta.Advance(w.Thread, w.Bytes)
	return t.meta
}

func (t *OffsetTracker) Meta() Meta {
	return t.meta
}

// Run applies every report from in and sends the resulting meta to out.
// The seed itself is not sent. out is closed once in is drained.
func (t *OffsetTracker) Run(in <-chan Written, out chan<- Meta) {
	defer close(out)
	for w := range in {
		out <- t.Apply(w)
	}
}

// CompletionDetector turns the completion predicate into a one-shot signal.
type CompletionDetector struct {
	last bool
}

// Observe returns true only when m is complete and the previously observed
// meta was not.
func (d *CompletionDetector) Observe(m Meta) bool {
	done := Complete(m)
	fired := done && !d.last
	d.last = done
	return fired
}
