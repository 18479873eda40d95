package main

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progress draws a candidate counter on w. A disabled progress is a no-op.
type progress struct {
	enabled bool
	w       io.Writer
	p       *mpb.Progress
	bar     *mpb.Bar
}

func newProgress(w io.Writer, enabled bool) *progress {
	return &progress{enabled: enabled, w: w}
}

// Start creates the bar once the number of candidates is known.
func (pr *progress) Start(total int) {
	if !pr.enabled || pr.p != nil {
		return
	}
	pr.p = mpb.New(mpb.WithWidth(64), mpb.WithOutput(pr.w))
	pr.bar = pr.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Scoring: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
}

func (pr *progress) Increment() {
	if pr.bar != nil {
		pr.bar.Increment()
	}
}

// Finish waits for the bar to render its final state. An unsuccessful run
// aborts the bar so Wait does not block on the missing increments.
func (pr *progress) Finish(ok bool) {
	if pr.p == nil {
		return
	}
	if !ok {
		pr.bar.Abort(false)
	}
	pr.p.Wait()
}
