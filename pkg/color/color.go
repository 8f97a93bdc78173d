// Package color provides terminal color output for git-privacy.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"sync"
)

var state struct {
	enabled  bool
	once     sync.Once
	disabled bool
}

// Init initializes the color system based on environment and flags.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		if _, exists := os.LookupEnv("NO_COLOR"); exists {
			state.disabled = true
		}
		if term := os.Getenv("TERM"); term == "dumb" {
			state.disabled = true
		}
		if noColorFlag {
			state.disabled = true
		}
		state.enabled = !state.disabled
	})
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	return state.enabled
}

// Disable turns off color output.
func Disable() {
	state.disabled = true
	state.enabled = false
}

const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + reset
}

// Commit formats a commit id the way git colors them, in yellow.
func Commit(s string) string { return wrap(yellow, s) }

// Obscured formats an anonymized timestamp in red.
func Obscured(s string) string { return wrap(red, s) }

// Recovered formats a recovered original timestamp in green.
func Recovered(s string) string { return wrap(green, s) }

// Highlight formats an emphasized value in cyan.
func Highlight(s string) string { return wrap(cyan, s) }

// Error formats an error message in red.
func Error(s string) string { return wrap(red, s) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return wrap(yellow, s) }

// Warningf formats a warning with printf-style arguments.
func Warningf(format string, args ...any) string {
	return Warning(fmt.Sprintf(format, args...))
}
