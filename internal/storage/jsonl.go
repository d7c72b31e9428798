package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lazyview/internal/model"
)

// CallLog appends call records to a JSONL file. A batch is encoded in full
// before anything is written, so a record that fails to encode leaves the
// file untouched.
type CallLog struct {
	path string
	mu   sync.Mutex
}

func NewCallLog(path string) *CallLog {
	return &CallLog{path: path}
}

// PutCallBatch appends one line per record.
func (l *CallLog) PutCallBatch(ctx context.Context, records []model.CallRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode call record %s: %w", records[i].Function, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create call log dir: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open call log: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("append call records: %w", err)
	}
	return file.Close()
}
