// FILE: yetitel/src/internal/sink/file.go
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"yetitel/src/internal/core"

	"github.com/lixenwraith/log"
)

const (
	defaultMaxFileSize   = 100 * 1024 * 1024 // 100 MiB
	defaultRetentionDays = 7
	flushEveryWrites     = 100

	filePrefix = "telemetry-"
	fileSuffix = ".jsonl"
	dateLayout = "2006-01-02"
)

// FileSinkOptions configures a file sink. Zero values take the defaults.
type FileSinkOptions struct {
	Directory     string
	MaxFileSize   int64
	RetentionDays int
}

// FileSink archives records as newline-delimited JSON in date-named files
// (telemetry-YYYY-MM-DD.jsonl) with size-triggered rotation and age-based
// retention. The size threshold is advisory: a same-day rotation reopens
// the same filename in append mode, so only a day boundary actually starts
// a new file.
type FileSink struct {
	directory   string
	currentDate string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64
	maxFileSize int64
	retention   time.Duration
	writeCount  uint64
	logger      *log.Logger

	// Clock hook for rotation tests
	now func() time.Time

	// Statistics
	totalProcessed atomic.Uint64
	lastProcessed  atomic.Value // time.Time
	startTime      time.Time
}

// NewFileSink creates the target directory if needed and opens today's file.
// A failed open is logged, not returned: the sink starts degraded and
// retries on the next rotation.
func NewFileSink(opts FileSinkOptions, logger *log.Logger) *FileSink {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	retentionDays := opts.RetentionDays
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	fs := &FileSink{
		directory:   opts.Directory,
		maxFileSize: maxSize,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		logger:      logger,
		now:         time.Now,
		startTime:   time.Now(),
	}
	fs.lastProcessed.Store(time.Time{})

	if err := os.MkdirAll(fs.directory, 0750); err != nil {
		logger.Error("msg", "Failed to create archive directory",
			"component", "file_sink",
			"directory", fs.directory,
			"error", err)
	}

	fs.currentDate = fs.now().Format(dateLayout)
	fs.openFile()
	return fs
}

func (fs *FileSink) WriteLog(record *core.LogRecord) {
	fs.write(core.KindLog, record)
}

func (fs *FileSink) WriteSpan(record *core.SpanRecord) {
	fs.write(core.KindSpan, record)
}

func (fs *FileSink) WriteMetric(record *core.MetricRecord) {
	fs.write(core.KindMetric, record)
}

// Stop flushes and closes the current file.
func (fs *FileSink) Stop() {
	if fs.writer != nil {
		if err := fs.writer.Flush(); err != nil {
			fs.logger.Error("msg", "Failed to flush archive file",
				"component", "file_sink",
				"error", err)
		}
	}
	if fs.file != nil {
		fs.file.Close()
		fs.file = nil
		fs.writer = nil
	}
}

func (fs *FileSink) GetStats() SinkStats {
	lastProc, _ := fs.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:           "file",
		TotalProcessed: fs.totalProcessed.Load(),
		StartTime:      fs.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"directory":    fs.directory,
			"current_file": fs.currentFilename(),
			"current_size": fs.currentSize,
		},
	}
}

// write serializes {"type": kind, "data": record} as one NDJSON line.
// Rotation need is evaluated once per call, before the write.
func (fs *FileSink) write(kind string, record any) {
	fs.maybeRotate()

	if fs.writer == nil {
		return
	}

	line, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: kind, Data: record})
	if err != nil {
		fs.logger.Error("msg", "Failed to serialize record for archive",
			"component", "file_sink",
			"kind", kind,
			"error", err)
		return
	}

	if _, err := fs.writer.Write(line); err != nil {
		fs.logger.Error("msg", "Failed to write archive line",
			"component", "file_sink",
			"error", err)
		return
	}
	if err := fs.writer.WriteByte('\n'); err != nil {
		return
	}

	fs.currentSize += int64(len(line)) + 1
	fs.writeCount++
	fs.totalProcessed.Add(1)
	fs.lastProcessed.Store(time.Now())

	if fs.writeCount%flushEveryWrites == 0 {
		if err := fs.writer.Flush(); err != nil {
			fs.logger.Error("msg", "Failed to flush archive file",
				"component", "file_sink",
				"error", err)
		}
	}
}

// maybeRotate closes and reopens the output when the calendar day changed
// or the byte count reached the threshold, then sweeps retention.
func (fs *FileSink) maybeRotate() {
	today := fs.now().Format(dateLayout)
	if today == fs.currentDate && fs.currentSize < fs.maxFileSize {
		return
	}

	fs.Stop()
	fs.currentDate = today
	fs.currentSize = 0
	fs.openFile()
	fs.cleanupOldFiles()
}

func (fs *FileSink) currentFilename() string {
	return filePrefix + fs.currentDate + fileSuffix
}

// openFile opens today's file in append mode. An existing file keeps its
// size as the starting byte counter, so restarts continue counting toward
// the rotation threshold.
func (fs *FileSink) openFile() {
	path := filepath.Join(fs.directory, fs.currentFilename())

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		fs.logger.Error("msg", "Failed to open archive file",
			"component", "file_sink",
			"path", path,
			"error", err)
		return
	}

	if info, err := file.Stat(); err == nil {
		fs.currentSize = info.Size()
	}

	fs.file = file
	fs.writer = bufio.NewWriter(file)
}

// cleanupOldFiles deletes archive files whose modification time is
// strictly older than the retention window. Failures are logged only.
func (fs *FileSink) cleanupOldFiles() {
	cutoff := fs.now().Add(-fs.retention)

	entries, err := os.ReadDir(fs.directory)
	if err != nil {
		fs.logger.Error("msg", "Failed to scan archive directory",
			"component", "file_sink",
			"directory", fs.directory,
			"error", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(fs.directory, name)
		if err := os.Remove(path); err != nil {
			fs.logger.Warn("msg", "Failed to delete expired archive file",
				"component", "file_sink",
				"path", path,
				"error", err)
			continue
		}
		fs.logger.Info("msg", "Deleted expired archive file",
			"component", "file_sink",
			"path", path,
			"age", fmt.Sprintf("%.1fh", fs.now().Sub(info.ModTime()).Hours()))
	}
}
