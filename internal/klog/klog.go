// Package klog is the kernel's structured logger. It wraps logrus the way
// the sentry wraps its own log package: a handful of level-tagged helpers
// used from deep inside the scheduler, VM and syscall layers, plus a Panic
// helper for kernel-invariant violations.
package klog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: false})
	return l
}

// SetDebug gates Debugf output, wired to the kernel command line's -debug
// flag (see cmd/pintos).
func SetDebug(on bool) {
	if on {
		std.SetLevel(logrus.DebugLevel)
	} else {
		std.SetLevel(logrus.InfoLevel)
	}
}

// Debugf logs scheduler/VM tracing, gated behind -debug.
func Debugf(format string, v ...any) {
	std.Debugf(format, v...)
}

// Warningf logs a recoverable anomaly: a condition the kernel tolerates but
// that a developer should see (e.g. a killed process, a retried syscall).
func Warningf(format string, v ...any) {
	std.Warningf(format, v...)
}

// Infof logs a normal lifecycle event (boot milestones, process exit).
func Infof(format string, v ...any) {
	std.Infof(format, v...)
}

// WithFields returns an entry carrying structured context (tid, tick, ...)
// for call sites that want fielded logs instead of formatted strings.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return std.WithFields(fields)
}

// Panic logs the formatted message at Error level then panics with it. This is
// the kernel-invariant failure path: assertions, magic-word corruption,
// scheduler re-entrancy, and other conditions that must halt the system
// rather than limp on.
func Panic(format string, v ...any) {
	std.Errorf(format, v...)
	panic(fmt.Sprintf(format, v...))
}
