package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogStorage saves the captured output of pipeline runs to files.
type LogStorage struct {
	BaseDir string
}

// Entry is one run's output as written to disk.
type Entry struct {
	RunID    string
	Pipeline string
	Command  string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// NewLogStorage creates a log storage rooted at baseDir.
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveLog writes e to <base>/<pipeline>_<runID>.log and returns the path.
// Stdout and stderr are written byte for byte.
func (ls *LogStorage) SaveLog(e Entry) (string, error) {
	if err := os.MkdirAll(ls.BaseDir, 0755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "command: %s\nexit: %d\n", e.Command, e.ExitCode)
	buf.WriteString("--- stdout ---\n")
	buf.Write(e.Stdout)
	buf.WriteString("\n--- stderr ---\n")
	buf.Write(e.Stderr)

	filename := fmt.Sprintf("%s_%s.log", sanitize(e.Pipeline), sanitize(e.RunID))
	path := filepath.Join(ls.BaseDir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// sanitize keeps filename-safe characters only.
func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, name)
	if clean == "" {
		return "pipeline"
	}
	return clean
}
