package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// User-facing output with colored status prefixes. Color is dropped
// automatically when the destination is not a terminal (color.NoColor).

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	infoPrefix    = color.New(color.FgCyan).SprintFunc()
	successPrefix = color.New(color.FgGreen).SprintFunc()
	warningPrefix = color.New(color.FgYellow).SprintFunc()
	errorPrefix   = color.New(color.FgRed, color.Bold).SprintFunc()
)

// SetOutput redirects user output. Nil arguments restore the defaults.
func SetOutput(out, errOut io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout = out
	stderr = errOut
}

// Stdout returns the writer used for user info and success messages.
func Stdout() io.Writer {
	return stdout
}

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...interface{}) {
	fmt.Fprintf(stdout, infoPrefix("ℹ")+" "+format+"\n", args...)
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...interface{}) {
	fmt.Fprintf(stdout, successPrefix("✓")+" "+format+"\n", args...)
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...interface{}) {
	fmt.Fprintf(stderr, warningPrefix("⚠")+" "+format+"\n", args...)
}

// UserError prints an error message to stderr.
func UserError(format string, args ...interface{}) {
	fmt.Fprintf(stderr, errorPrefix("✗")+" "+format+"\n", args...)
}
