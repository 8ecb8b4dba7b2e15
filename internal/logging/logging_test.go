package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 8, 25, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "waymarklogs",
			appName: "waymark",
			want:    filepath.Join("waymarklogs", "waymark.20260825_153000.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./waymarklogs",
			appName: "waymark",
			want:    filepath.Join(".", "waymarklogs", "waymark.20260825_153000.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "waymark"),
			appName: "waymark",
			want:    filepath.Join("/var", "log", "waymark", "waymark.20260825_153000.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
