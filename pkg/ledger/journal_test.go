package ledger

import (
	"crypto/sha256"
	"path/filepath"
	"testing"
	"time"
)

func TestJournalAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()

	j := &Journal{Dir: dir}
	if err := j.Open(); err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}

	for i := 0; i < 5; i++ {
		e := Entry{
			Seq:       j.NextSeq(),
			Op:        OpPublish,
			Digest:    sha256.Sum256([]byte{byte(i)}),
			Path:      filepath.Join("lnd", "file_c25010"+string(rune('0'+i))+".nc"),
			Timestamp: time.Now(),
		}
		if err := j.Append(e); err != nil {
			t.Fatalf("Failed to append entry %d: %v", i, err)
		}
	}
	if err := j.Fsync(); err != nil {
		t.Fatalf("Failed to fsync: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	files, err := (&Journal{Dir: dir}).findSegments()
	if err != nil {
		t.Fatalf("Failed to find segments: %v", err)
	}
	entries, err := ReadAll(files)
	if err != nil {
		t.Fatalf("Failed to read all: %v", err)
	}

	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("Entry %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}
}

func TestJournalAppendAfterClose(t *testing.T) {
	dir := t.TempDir()

	j := &Journal{Dir: dir}
	if err := j.Open(); err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	j.Close()

	e := Entry{Seq: 1, Op: OpPublish, Path: "x_c250101.nc", Timestamp: time.Now()}
	if err := j.Append(e); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestJournalSeqScanOnReopen(t *testing.T) {
	dir := t.TempDir()

	j := &Journal{Dir: dir}
	if err := j.Open(); err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	for i := 0; i < 3; i++ {
		e := Entry{Seq: j.NextSeq(), Op: OpPublish, Path: "x_c250101.nc", Timestamp: time.Now()}
		if err := j.Append(e); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}
	j.Close()

	j2 := &Journal{Dir: dir}
	if err := j2.Open(); err != nil {
		t.Fatalf("Failed to reopen journal: %v", err)
	}
	defer j2.Close()

	if next := j2.NextSeq(); next != 4 {
		t.Errorf("Expected next seq 4 after reopen, got %d", next)
	}
}

func TestJournalSizeOnDisk(t *testing.T) {
	dir := t.TempDir()

	j := &Journal{Dir: dir}
	if err := j.Open(); err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	e := Entry{Seq: j.NextSeq(), Op: OpPublish, Path: "x_c250101.nc", Timestamp: time.Now()}
	if err := j.Append(e); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	size, err := j.SizeOnDisk()
	if err != nil {
		t.Fatalf("Failed to get size: %v", err)
	}
	if size != int64(e.EncodedSize()) {
		t.Errorf("Expected size %d, got %d", e.EncodedSize(), size)
	}
}
