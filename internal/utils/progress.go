package utils

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar creates a consistently styled progress bar on stderr, so
// it never interleaves with anything written to stdout.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
}
