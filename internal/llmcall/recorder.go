package llmcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/medsum/internal/providers"
)

// Recorder appends calls to a JSONL file. Writes are queued and flushed by
// a background goroutine so recording never blocks extraction.
type Recorder struct {
	path   string
	logger *slog.Logger

	ch     chan *Call
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// NewRecorder opens path for appending, creating it when missing.
func NewRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create call log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}

	r := &Recorder{
		path:   path,
		logger: logger,
		ch:     make(chan *Call, 64),
		done:   make(chan struct{}),
	}
	go r.loop(f)
	return r, nil
}

func (r *Recorder) loop(f *os.File) {
	defer close(r.done)
	enc := json.NewEncoder(f)
	for call := range r.ch {
		if err := enc.Encode(call); err != nil {
			r.logger.Warn("failed to write LLM call record", "id", call.ID, "error", err)
		}
	}
	if err := f.Close(); err != nil {
		r.logger.Warn("failed to close call log", "path", r.path, "error", err)
	}
}

// Path returns the call log location.
func (r *Recorder) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Record captures an LLM call. A nil Recorder discards it.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.ch <- call
}

// Close flushes queued records and closes the file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
	<-r.done
	return nil
}
