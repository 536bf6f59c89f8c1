package indexer

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress is told how many rows each committed batch wrote, and gets the
// final stats once the run ends for any reason
type Progress interface {
	Written(n int) error
	Done(stats Stats)
}

type nopProgress struct{}

func (nopProgress) Written(int) error { return nil }
func (nopProgress) Done(Stats)        {}

// BarProgress draws a bar over the rows pending when the run started
type BarProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewBarProgress sizes the bar to pending rows and draws it on out
func NewBarProgress(pending int, out io.Writer) *BarProgress {
	return &BarProgress{
		out: out,
		bar: progressbar.NewOptions(pending,
			progressbar.OptionSetDescription("Embedding transactions"),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetItsString("tx"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "#",
				SaucerPadding: ".",
				BarStart:      "|",
				BarEnd:        "|",
			})),
	}
}

func (p *BarProgress) Written(n int) error {
	return p.bar.Add(n)
}

// Done leaves a one-line summary in place of the bar
func (p *BarProgress) Done(stats Stats) {
	_ = p.bar.Exit()
	fmt.Fprintf(p.out, "\r\033[KEmbedded %d of %d selected rows in %d batches\n", stats.Written, stats.Selected, stats.Batches)
}
