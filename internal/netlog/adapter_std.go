//go:build !tinygo

package netlog

import "log"

// Std returns a Logger that writes to the standard library's log package,
// prefixed by level, matching the teacher's stdLogger.
func Std() Logger { return stdLogger{} }

type stdLogger struct{}

func (stdLogger) Debug(msg string) { log.Print("[DEBUG] " + msg) }
func (stdLogger) Info(msg string)  { log.Print("[INFO]  " + msg) }
func (stdLogger) Warn(msg string)  { log.Print("[WARN]  " + msg) }
func (stdLogger) Error(msg string) { log.Print("[ERROR] " + msg) }
