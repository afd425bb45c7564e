package ledger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// State is a published file's lifecycle state
type State byte

const (
	// StatePublished means the file has been imported into the archive
	StatePublished State = 1

	// StateRelinked means the archive copy has been replaced by a symlink
	// into the long-term collection. Terminal state.
	StateRelinked State = 2
)

// Record is the current ledger state for one relative path
type Record struct {
	Path        string
	Digest      [DigestSize]byte
	Fingerprint uint64
	Size        int64
	OwnerUID    uint32
	State       State
	Seq         uint64
	PublishedAt time.Time
	RelinkedAt  time.Time
}

// Conflict records a journal entry that violated the never-reuse policy.
// Conflicts can only appear if a ledger was written by a tool that did not
// enforce the policy; they are surfaced to the auditor rather than making
// the ledger unopenable.
type Conflict struct {
	Path      string
	Seq       uint64
	OldDigest [DigestSize]byte
	NewDigest [DigestSize]byte
}

// Ledger is the publication ledger: an append-only journal plus an
// in-memory index rebuilt by replay on open.
type Ledger struct {
	journal *Journal

	mu        sync.RWMutex
	index     map[string]*Record
	conflicts []Conflict
}

// Open opens (or creates) the ledger in the given directory and rebuilds
// the index by replaying every segment.
func Open(dir string) (*Ledger, error) {
	l := &Ledger{
		journal: &Journal{Dir: dir},
		index:   make(map[string]*Record),
	}

	if err := l.journal.Open(); err != nil {
		return nil, fmt.Errorf("ledger: open journal: %w", err)
	}

	if err := l.replay(); err != nil {
		l.journal.Close()
		return nil, err
	}

	return l, nil
}

// replay rebuilds the index from the journal segments
func (l *Ledger) replay() error {
	files, err := l.journal.findSegments()
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh ledger
		}
		return err
	}
	if len(files) == 0 {
		return nil
	}

	entries, err := ReadAll(files)
	if err != nil {
		return fmt.Errorf("ledger: replay: %w", err)
	}

	for _, e := range entries {
		l.apply(e)
	}

	return nil
}

// apply folds one journal entry into the index
func (l *Ledger) apply(e *Entry) {
	switch e.Op {
	case OpPublish:
		if rec, ok := l.index[e.Path]; ok {
			if rec.Digest != e.Digest {
				l.conflicts = append(l.conflicts, Conflict{
					Path:      e.Path,
					Seq:       e.Seq,
					OldDigest: rec.Digest,
					NewDigest: e.Digest,
				})
			}
			return
		}
		l.index[e.Path] = &Record{
			Path:        e.Path,
			Digest:      e.Digest,
			Fingerprint: e.Fingerprint,
			Size:        e.Size,
			OwnerUID:    e.OwnerUID,
			State:       StatePublished,
			Seq:         e.Seq,
			PublishedAt: e.Timestamp,
		}

	case OpRelink:
		if rec, ok := l.index[e.Path]; ok {
			rec.State = StateRelinked
			rec.RelinkedAt = e.Timestamp
			rec.Seq = e.Seq
		}
	}
}

// RecordPublish appends a publication entry. Publishing a path that is
// already in the ledger is idempotent when the digest matches and fails
// with ErrNameReused when it does not.
func (l *Ledger) RecordPublish(relPath string, digest [DigestSize]byte, fingerprint uint64, size int64, ownerUID uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, ok := l.index[relPath]; ok {
		if rec.Digest != digest {
			return fmt.Errorf("%w: %s", ErrNameReused, relPath)
		}
		return nil
	}

	entry := Entry{
		Seq:         l.journal.NextSeq(),
		Op:          OpPublish,
		OwnerUID:    ownerUID,
		Size:        size,
		Fingerprint: fingerprint,
		Digest:      digest,
		Path:        relPath,
		Timestamp:   time.Now(),
	}

	if err := l.journal.Append(entry); err != nil {
		return err
	}
	if err := l.journal.Fsync(); err != nil {
		return err
	}

	l.apply(&entry)
	return nil
}

// RecordRelink appends a relink entry for an already-published path
func (l *Ledger) RecordRelink(relPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.index[relPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPublished, relPath)
	}
	if rec.State == StateRelinked {
		return nil
	}

	entry := Entry{
		Seq:         l.journal.NextSeq(),
		Op:          OpRelink,
		OwnerUID:    rec.OwnerUID,
		Size:        rec.Size,
		Fingerprint: rec.Fingerprint,
		Digest:      rec.Digest,
		Path:        relPath,
		Timestamp:   time.Now(),
	}

	if err := l.journal.Append(entry); err != nil {
		return err
	}
	if err := l.journal.Fsync(); err != nil {
		return err
	}

	l.apply(&entry)
	return nil
}

// Lookup returns the current record for a relative path
func (l *Ledger) Lookup(relPath string) (*Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.index[relPath]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Each calls fn for every record in the index. Iteration order is
// unspecified.
func (l *Ledger) Each(fn func(rec *Record)) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, rec := range l.index {
		cp := *rec
		fn(&cp)
	}
}

// Conflicts returns the never-reuse violations found during replay
func (l *Ledger) Conflicts() []Conflict {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Conflict, len(l.conflicts))
	copy(out, l.conflicts)
	return out
}

// Len returns the number of paths in the index
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.index)
}

// SizeOnDisk returns the total size of all segments
func (l *Ledger) SizeOnDisk() (int64, error) {
	return l.journal.SizeOnDisk()
}

// Close closes the ledger
func (l *Ledger) Close() error {
	return l.journal.Close()
}
