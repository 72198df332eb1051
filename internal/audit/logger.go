// Package audit implements the prediction audit trail.
//
// Every /predict call is recorded as one JSONL entry on a size-rotated log
// file, capturing what was asked and how it ended without storing any
// sequence data.
package audit

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp  time.Time `json:"ts"`
	RemoteAddr string    `json:"remoteAddr"`
	Readout    string    `json:"readout,omitempty"`
	Tasks      int       `json:"tasks"`
	Sequences  int       `json:"sequences"`
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status"`
	LatencyMs  int64     `json:"latencyMs"`
}

// Logger writes audit entries serially to a rotating file.
type Logger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger creates an audit logger writing audit.jsonl under logDir,
// rotating at maxSizeMB with maxBackups retained for maxAgeDays.
func NewLogger(logDir string, maxSizeMB, maxBackups, maxAgeDays int) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "audit.jsonl"),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
	}, nil
}

// LogPrediction records the outcome of one prediction request.
func (l *Logger) LogPrediction(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("audit: failed to marshal entry: %v", err)
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(data); err != nil {
		log.Printf("audit: failed to write entry: %v", err)
	}
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
