package main

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/justestif/moodtune/internal/training"
)

// progressBars draws one bar per training phase.
type progressBars struct {
	p    *mpb.Progress
	bars map[training.Phase]*mpb.Bar
}

func newProgressBars(w io.Writer) *progressBars {
	return &progressBars{
		p:    mpb.New(mpb.WithWidth(64), mpb.WithOutput(w)),
		bars: make(map[training.Phase]*mpb.Bar),
	}
}

// update implements training.ProgressFunc.
func (pb *progressBars) update(phase training.Phase, done, total int) {
	bar, ok := pb.bars[phase]
	if !ok {
		bar = pb.p.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name(string(phase) + ": "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
		pb.bars[phase] = bar
	}
	bar.SetCurrent(int64(done))
}

// wait drops bars of phases that stopped early, then flushes the output.
func (pb *progressBars) wait() {
	for _, bar := range pb.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	pb.p.Wait()
}
