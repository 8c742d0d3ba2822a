package reindex

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides callbacks for reporting reindex progress.
// Implementations can display progress bars, log messages, or remain silent.
type Reporter interface {
	// OnScanComplete is called once discovery finishes, with the number of
	// root template files found across all kinds.
	OnScanComplete(totalFiles int)

	// OnEntryIndexed is called after the consumer finishes one entry
	// (embedded, tagged, manifest written if needed).
	OnEntryIndexed(name string)

	// OnComplete is called when the pipeline finishes successfully.
	OnComplete(totalEntries int)
}

// NoOpReporter is a Reporter that does nothing, used when progress
// reporting is disabled.
type NoOpReporter struct{}

func (NoOpReporter) OnScanComplete(totalFiles int) {}
func (NoOpReporter) OnEntryIndexed(name string)    {}
func (NoOpReporter) OnComplete(totalEntries int)   {}

// BarReporter renders a terminal progress bar during a bulk reindex.
type BarReporter struct {
	bar *progressbar.ProgressBar
}

// NewBarReporter creates a Reporter backed by a terminal progress bar.
func NewBarReporter() *BarReporter {
	return &BarReporter{}
}

func (b *BarReporter) OnScanComplete(totalFiles int) {
	b.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Reindexing templates"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("templates/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (b *BarReporter) OnEntryIndexed(name string) {
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

func (b *BarReporter) OnComplete(totalEntries int) {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
