package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"revolver/pkg/revolver"
)

// progressLine redraws a single terminal line per generation.
type progressLine struct {
	w io.Writer

	mu    sync.Mutex
	drawn bool
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w}
}

func (p *progressLine) update(s revolver.GenerationStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r\033[Kgeneration %s  best %.6f  mean %.6f  evaluations %s",
		humanize.Comma(int64(s.Generation)), s.Best, s.Average, humanize.Comma(int64(s.Evaluations)))
	p.drawn = true
}

// done ends the line. A nil progressLine is a no-op.
func (p *progressLine) done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
