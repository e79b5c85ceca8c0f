//go:build !tinygo

package netlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// Charm returns a Logger backed by charmbracelet/log, for host binaries
// under cmd/ that want leveled, colorized console output. Core packages
// never construct this themselves; only cmd/ mains do.
func Charm(name string) Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          name,
	})
	return &charmLogger{l: l}
}

type charmLogger struct {
	l *log.Logger
}

func (c *charmLogger) Debug(msg string) { c.l.Debug(msg) }
func (c *charmLogger) Info(msg string)  { c.l.Info(msg) }
func (c *charmLogger) Warn(msg string)  { c.l.Warn(msg) }
func (c *charmLogger) Error(msg string) { c.l.Error(msg) }
