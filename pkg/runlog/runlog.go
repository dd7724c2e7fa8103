// Package runlog persists records as JSON lines. Writers in different
// processes share the file through a lock file next to it.
package runlog

import (
	"bufio"
	"bytes"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/oarkflow/json"
)

// Appender appends values of type T to a JSON-lines file.
type Appender[T any] struct {
	path         string
	file         *os.File
	fileLock     *flock.Flock
	mu           sync.Mutex
	syncOnAppend bool
}

func Open[T any](path string) (*Appender[T], error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Appender[T]{
		path:         path,
		file:         f,
		fileLock:     flock.New(path + ".lock"),
		syncOnAppend: true,
	}, nil
}

func (a *Appender[T]) Path() string {
	return a.path
}

func (a *Appender[T]) Append(element T) error {
	return a.AppendBatch([]T{element})
}

// AppendBatch writes all elements under one lock so a batch is never
// interleaved with another writer.
func (a *Appender[T]) AppendBatch(elements []T) error {
	if len(elements) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, element := range elements {
		data, err := json.Marshal(element)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fileLock.Lock(); err != nil {
		return err
	}
	defer func() {
		_ = a.fileLock.Unlock()
	}()
	if _, err := a.file.Write(buf.Bytes()); err != nil {
		return err
	}
	if a.syncOnAppend {
		return a.file.Sync()
	}
	return nil
}

func (a *Appender[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// ReadAll decodes every line of the file. A missing file yields no records.
func ReadAll[T any](path string) ([]T, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}
