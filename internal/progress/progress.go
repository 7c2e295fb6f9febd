package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar wraps a progress bar for benchmark and verification runs.
type Bar struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// Option configures a Bar.
type Option func(*settings)

type settings struct {
	out io.Writer
}

// WithWriter draws the bar on w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.out = w
	}
}

func resolve(opts []Option) settings {
	s := settings{out: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewSpinner creates a spinner for operations with unknown total count, such
// as following a growing file.
func NewSpinner(label string, opts ...Option) *Bar {
	s := resolve(opts)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Bar{bar: bar, label: label, out: s.out}
}

// New creates a progress bar with the given label and total count.
func New(label string, total int, opts ...Option) *Bar {
	s := resolve(opts)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Bar{bar: bar, label: label, out: s.out}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (b *Bar) Tick() {
	b.bar.Add(1)
}

// Finish clears the bar completely.
func (b *Bar) Finish() {
	b.bar.Finish()
	b.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (b *Bar) FinishError(err error) {
	b.bar.Finish()
	b.bar.Clear()
	fmt.Fprintf(b.out, "  %s error: %v\n", b.label, err)
}
