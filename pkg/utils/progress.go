package utils

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

type ProgressReporter interface {
	Start(total int, desc string)
	Increment()
	Finish()
}

type BarProgress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a terminal progress bar, or a no-op reporter when
// stderr is not a terminal.
func NewProgress() ProgressReporter {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nopProgress{}
	}
	return &BarProgress{}
}

func (p *BarProgress) Start(total int, desc string) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *BarProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *BarProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

type nopProgress struct{}

func (nopProgress) Start(int, string) {}
func (nopProgress) Increment()        {}
func (nopProgress) Finish()           {}
