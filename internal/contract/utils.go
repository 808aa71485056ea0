package contract

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Fit quality label constants.
const (
	StrongValue   = "Strong"   // Strong value
	GoodValue     = "Good"     // Good value
	WeakValue     = "Weak"     // Weak value
	UnknownValue  = "Unknown"  // Unknown value
	FailedValue   = "Failed"   // Failed value
	WarningValue  = "Warning"  // Warning value
	ForecastValue = "Forecast" // Forecast value
)

// Color variables for console output.
var (
	StrongColor  = color.New(color.FgGreen, color.Bold) // StrongColor represents a close fit.
	GoodColor    = color.New(color.FgCyan)              // GoodColor represents an acceptable fit.
	WeakColor    = color.New(color.FgYellow)            // WeakColor represents a poor fit.
	FailedColor  = color.New(color.FgRed, color.Bold)   // FailedColor represents errors.
	WarningColor = color.New(color.FgMagenta)           // WarningColor represents non-fatal degeneracies.
)

// GetPlainLabel returns a plain text label for the Pearson correlation
// between the posterior mean curve and the data. This is the core logic
// used for CSV, JSON, and table printing.
func GetPlainLabel(corr float64) string {
	switch {
	case math.IsNaN(corr):
		return UnknownValue
	case corr >= 0.99:
		return StrongValue
	case corr >= 0.9:
		return GoodValue
	default:
		return WeakValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
// It uses GetPlainLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(corr float64) string {
	text := GetPlainLabel(corr)

	switch text {
	case StrongValue:
		return StrongColor.Sprint(text)
	case GoodValue:
		return GoodColor.Sprint(text)
	case WeakValue:
		return WeakColor.Sprint(text)
	default:
		return text
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for dataset caching.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".coronacaster_cache.db"
	}
	return filepath.Join(homeDir, ".coronacaster_cache.db")
}

// GetRunDBFilePath returns the path to the SQLite DB file for run tracking.
func GetRunDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".coronacaster_runs.db"
	}
	return filepath.Join(homeDir, ".coronacaster_runs.db")
}

// Truncate shortens s to maxWidth runes with an ellipsis suffix.
// Requires maxWidth > 3 to leave room for the ellipsis.
func Truncate(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
