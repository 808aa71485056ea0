// Package outwriter renders forecasts, priors, series and experiment results
// as tables, CSV, JSON or Parquet.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"golang.org/x/term"
)

// Width bounds for free-text table columns.
const (
	minTextWidth = 20
	maxTextWidth = 100
)

// getMaxTableTextWidth calculates the width available to free-text columns
// such as error messages and warnings, given the fixed columns in use.
func getMaxTableTextWidth(cfg *contract.Config, fixedWidth int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Borders, separators and padding
	available := termWidth - fixedWidth - 10
	if available < minTextWidth {
		return minTextWidth
	}
	if available > maxTextWidth {
		return maxTextWidth
	}
	return available
}

// header returns title decorated with icon when emojis are enabled.
func header(cfg *contract.Config, icon, title string) string {
	if cfg.UseEmojis && icon != "" {
		return icon + " " + title
	}
	return title
}

// colorize applies c to text when colors are enabled.
func colorize(cfg *contract.Config, c interface{ Sprint(...any) string }, text string) string {
	if cfg.UseColors {
		return c.Sprint(text)
	}
	return text
}

// fitLabel returns the fit quality label of corr, colored when enabled.
func fitLabel(cfg *contract.Config, corr float64) string {
	if cfg.UseColors {
		return contract.GetColorLabel(corr)
	}
	return contract.GetPlainLabel(corr)
}

// writeFooter prints the timing line that closes every text report.
func writeFooter(w io.Writer, what string, cfg *contract.Config, duration time.Duration) error {
	_, err := fmt.Fprintf(w, "%s completed in %v with %d workers. Cache backend: %s\n",
		what, duration.Round(time.Millisecond), cfg.Workers, cfg.CacheBackend)
	return err
}
