// Package recorder writes exchange cycles to a JSON-lines file without
// blocking the exchange loop.
package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/processing"
)

// Recorder appends one JSON document per line to a file. Records are
// written in submission order by a single worker; when the queue is full
// records are dropped and counted.
type Recorder struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
	pool   *processing.ProcessingPool
	logger customlog.Logger
	once   sync.Once
	err    error
}

// FileName returns the recording file name for a session.
func FileName(session string) string {
	return fmt.Sprintf("cycles-%s.jsonl", session)
}

// New creates dir if needed and opens the session's recording file.
func New(dir, session string, queueSize int, logger customlog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(session))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording file %s: %w", path, err)
	}

	r := &Recorder{
		path:   path,
		file:   f,
		writer: bufio.NewWriter(f),
		logger: logger,
	}
	r.enc = json.NewEncoder(r.writer)
	r.pool = processing.NewProcessingPool("recorder", 1, queueSize, r.write, logger)
	r.pool.Start()

	logger.Infof("Recording cycles to %s", path)
	return r, nil
}

// Path returns the recording file path.
func (r *Recorder) Path() string { return r.path }

// Record queues v for writing. It returns false if v was dropped.
func (r *Recorder) Record(v interface{}) bool {
	return r.pool.Submit(v)
}

// Dropped returns how many records were lost to a full queue.
func (r *Recorder) Dropped() int64 {
	return r.pool.GetMetrics().DroppedCount
}

func (r *Recorder) write(item interface{}) error {
	// Encode appends the newline
	return r.enc.Encode(item)
}

// Close flushes pending records and closes the file.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.pool.Stop()
		if err := r.writer.Flush(); err != nil {
			r.err = fmt.Errorf("flush %s: %w", r.path, err)
		}
		if err := r.file.Close(); err != nil && r.err == nil {
			r.err = fmt.Errorf("close %s: %w", r.path, err)
		}
		m := r.pool.GetMetrics()
		r.logger.Infof("Recorder closed: %d records written, %d dropped, %d failed", m.ProcessedCount-m.ErrorCount, m.DroppedCount, m.ErrorCount)
	})
	return r.err
}
