package pipeline

import (
	"fmt"

	"github.com/okian/resumerank/internal/domain/model"
)

// Reporter receives progress while a batch runs. Calls come from the orchestrator's
// goroutine in order.
type Reporter interface {
	Narrate(msg string)
	FileChanged(o model.FileOutcome)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Narrate(string)                {}
func (NopReporter) FileChanged(model.FileOutcome) {}

const narrativeCreating = "Creating job posting..."

func narrativeUploading(name string, i, n int) string {
	return fmt.Sprintf("Uploading %s (%d/%d)...", name, i, n)
}

func narrativeAnalyzing(name string, i, n int) string {
	return fmt.Sprintf("Analyzing %s (%d/%d)...", name, i, n)
}

func narrativeComplete(analyzed, failed int) string {
	return fmt.Sprintf("Analysis complete: %d analyzed, %d failed.", analyzed, failed)
}

func narrativeCancelled(analyzed, failed, skipped int) string {
	return fmt.Sprintf("Batch cancelled: %d analyzed, %d failed, %d skipped.", analyzed, failed, skipped)
}
