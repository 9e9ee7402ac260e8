// Package ui provides terminal output helpers for the corpus-engine CLI.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

var verboseFlag bool

// Init applies the color and verbosity flags.
func Init(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Message prints a plain line to stdout.
func Message(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// Verbose prints only when --verbose is set.
func Verbose(format string, args ...interface{}) {
	if verboseFlag {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	}
}

// Success prints a green check line.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning line.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

// Error prints a red error line to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}

// KeyValue prints an indented key-value pair.
func KeyValue(key, value string) {
	fmt.Fprintf(os.Stdout, "  %s: %s\n", key, value)
}

// Section prints an underlined section header.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
}

// Newline prints a blank line.
func Newline() {
	fmt.Fprintln(os.Stdout)
}

// FormatDuration renders a duration as h/m/s.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	seconds := (d - minutes*time.Minute) / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
