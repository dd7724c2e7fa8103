package runlog

import (
	"path/filepath"
	"sync"
	"testing"
)

type entry struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	a, err := Open[entry](path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := a.Append(entry{ID: "a", Count: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := a.AppendBatch([]entry{{ID: "b", Count: 2}, {ID: "c", Count: 3}}); err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records, err := ReadAll[entry](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 3 || records[0].ID != "a" || records[2].Count != 3 {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	for i := 0; i < 2; i++ {
		a, err := Open[entry](path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := a.Append(entry{Count: i}); err != nil {
			t.Fatalf("append: %v", err)
		}
		a.Close()
	}
	records, err := ReadAll[entry](path)
	if err != nil || len(records) != 2 {
		t.Fatalf("expected two records, got %+v (%v)", records, err)
	}
}

func TestConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	a, err := Open[entry](path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := a.Append(entry{Count: i}); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	records, err := ReadAll[entry](path)
	if err != nil || len(records) != 20 {
		t.Fatalf("expected 20 records, got %d (%v)", len(records), err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll[entry](filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil || records != nil {
		t.Fatalf("expected no records, got %+v (%v)", records, err)
	}
}
