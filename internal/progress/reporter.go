package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/devcompass/internal/job"
)

// Reporter shows the progress of an ingestion job.
type Reporter interface {
	Update(u job.Update)
	Finish()
}

// NewReporter returns a TerminalReporter if running in an interactive terminal,
// or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{Out: os.Stderr}
	}
	return &TerminalReporter{}
}

// TerminalReporter draws the job's progress width as a bar.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Update(u job.Update) {
	if r.bar == nil {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	text, width := u.Display()
	if u.Status == job.StatusError && u.Message != "" {
		text = u.Message
	}
	r.bar.Describe(text)
	_ = r.bar.Set(width)
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints one line per status change, suitable for CI logs.
type CIReporter struct {
	Out  io.Writer
	last job.Status
}

func (r *CIReporter) Update(u job.Update) {
	if u.Status == r.last && u.Status != job.StatusError {
		return
	}
	r.last = u.Status
	text, width := u.Display()
	if u.Message != "" {
		text += " " + u.Message
	}
	fmt.Fprintf(r.Out, "[%3d%%] %s\n", width, text)
}

func (r *CIReporter) Finish() {
	fmt.Fprintln(r.Out, "Analysis finished")
}
