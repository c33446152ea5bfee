package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends audit events to an NDJSON file with size-based
// rotation. Search scans the current file only; rotated files are kept
// for offline analysis.
type FileLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *json.Encoder
	maxSize int64
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	Path    string // Path of the active audit log file
	MaxSize int64  // Max file size in bytes before rotation (default: 100MB)
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 100 * 1024 * 1024
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	logger := &FileLogger{
		path:    config.Path,
		maxSize: config.MaxSize,
	}
	if err := logger.open(); err != nil {
		return nil, err
	}
	return logger, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

func (l *FileLogger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil || info.Size() < l.maxSize {
		return err
	}

	if err := l.file.Close(); err != nil {
		return err
	}
	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().UTC().Format("2006-01-02T15-04-05"))
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	return l.open()
}

// Log appends one event as a JSON line
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		return err
	}
	return l.encoder.Encode(event)
}

// Search scans the active file and returns matching events, newest first
func (l *FileLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		event, err := FromJSON(scanner.Bytes())
		if err != nil {
			continue
		}
		if matchesFilter(event, filter) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// newest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return nil, nil
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

func matchesFilter(event *Event, filter SearchFilter) bool {
	if filter.StartTime != nil && event.CreatedAt.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.CreatedAt.After(*filter.EndTime) {
		return false
	}
	if filter.UserID != nil && (event.UserID == nil || *event.UserID != *filter.UserID) {
		return false
	}
	if filter.Status != nil && event.Status != *filter.Status {
		return false
	}
	if filter.ResourceType != "" && event.ResourceType != filter.ResourceType {
		return false
	}
	if filter.ResourceID != "" && event.ResourceID != filter.ResourceID {
		return false
	}
	if len(filter.EventTypes) > 0 {
		found := false
		for _, et := range filter.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Close closes the underlying file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var _ Logger = (*FileLogger)(nil)
