//go:build tinygo

package netlog

import "machine"

// Std returns a Logger that writes straight to machine.Serial, avoiding
// the fmt package's code size and allocation overhead on a TinyGo target.
func Std() Logger { return serialLogger{} }

type serialLogger struct{}

func (serialLogger) write(level, msg string) {
	machine.Serial.Write([]byte(level))
	machine.Serial.Write([]byte(msg))
	machine.Serial.Write([]byte("\r\n"))
}

func (l serialLogger) Debug(msg string) { l.write("[DEBUG] ", msg) }
func (l serialLogger) Info(msg string)  { l.write("[INFO]  ", msg) }
func (l serialLogger) Warn(msg string)  { l.write("[WARN]  ", msg) }
func (l serialLogger) Error(msg string) { l.write("[ERROR] ", msg) }
