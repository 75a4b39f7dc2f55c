// Package logx is a small wrapper around the standard library's log
// package, prefixing every line with the unit index. It mirrors the
// teacher's emoji-tagged, human-readable logging for the handful of
// lifecycle/error events worth calling out, rather than adopting a
// structured-logging framework the teacher never reaches for either.
package logx

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Unit attach/detach and similar lifecycle events.
func Attach(unitIndex int, msg string, args ...any) {
	logf(unitIndex, "🔌", msg, args...)
}

// Control is for CCP/negotiation state transitions.
func Control(unitIndex int, msg string, args ...any) {
	logf(unitIndex, "📡", msg, args...)
}

// Warn is for recoverable error conditions (decompression errors, queue
// drops) worth surfacing without treating as fatal.
func Warn(unitIndex int, msg string, args ...any) {
	logf(unitIndex, "⚠️", msg, args...)
}

// Stat is for periodic statistics ticks.
func Stat(unitIndex int, msg string, args ...any) {
	logf(unitIndex, "📊", msg, args...)
}

func logf(unitIndex int, tag, msg string, args ...any) {
	std.Printf(tag+" [unit %d] "+msg, append([]any{unitIndex}, args...)...)
}

// System is for process-wide events with no single owning unit (startup,
// CPU affinity, shutdown).
func System(msg string, args ...any) {
	std.Printf("🎯 "+msg, args...)
}
