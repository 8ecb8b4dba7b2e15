// Package logging assembles the structured logging pipeline: a session log
// file or the console, optional OTel export, optional GELF shipping, and
// per-record scene context.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the session log file path using OS-appropriate
// path separators, e.g. waymarklogs/waymark.20260825_153000.log.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}
