package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner with the given message. It writes to stderr
// so piped stdout stays clean.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.spinner.Start()
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// ByteBar tracks progress through a byte stream. It implements io.Writer so
// it can sit on the write side of an io.TeeReader.
type ByteBar struct {
	bar *progressbar.ProgressBar
}

// NewByteBar creates a byte-denominated progress bar with the given total
// and description.
func NewByteBar(total int64, description string) *ByteBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ByteBar{bar: bar}
}

// Write advances the bar by len(p).
func (b *ByteBar) Write(p []byte) (int, error) {
	return b.bar.Write(p)
}

// Finish completes the bar.
func (b *ByteBar) Finish() {
	_ = b.bar.Finish()
}

// MultiProgress renders one live line per concurrent task.
type MultiProgress struct {
	progress *mpb.Progress
}

// NewMultiProgress creates the shared renderer for concurrent task bars.
func NewMultiProgress() *MultiProgress {
	return &MultiProgress{
		progress: mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr)),
	}
}

// AddTask registers a single-step task bar. Increment it once when the task
// finishes; the filler flips to a check mark on completion.
func (m *MultiProgress) AddTask(name string) *mpb.Bar {
	return m.progress.AddBar(1,
		mpb.BarFillerOnComplete("✓"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.Spinner([]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}, decor.WC{W: 1}),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
		),
	)
}

// Wait blocks until every bar completes. When output is piped the bars
// cannot render and Wait may hang, so shut down instead.
func (m *MultiProgress) Wait() {
	if IsTerminal() {
		m.progress.Wait()
	} else {
		m.progress.Shutdown()
	}
}
