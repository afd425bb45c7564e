package ledger

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	// MaxSegmentSize is the maximum size of a single ledger segment (64MB)
	MaxSegmentSize = 64 << 20

	// SegmentPrefix is the base name of ledger segment files
	SegmentPrefix = "ledger"
)

// Journal is the append-only segment store backing the ledger. Segments
// rotate by size and are never deleted: the journal is the permanent
// record of every publication and relink.
type Journal struct {
	// Dir is the directory holding ledger segments
	Dir string

	// fd is the current segment file descriptor
	fd *os.File

	// mu protects concurrent access to the journal
	mu sync.Mutex

	// seq is the current sequence number (atomic)
	seq uint64

	// fileSize is the current segment size
	fileSize int64

	// fileIndex is the current segment index (0, 1, 2, ...)
	fileIndex int

	// closed indicates whether the journal is closed
	closed bool
}

// Open opens or creates the journal
func (j *Journal) Open() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Find existing segments
	files, err := j.findSegments()
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if len(files) > 0 {
		// Open latest segment in append mode
		latest := files[len(files)-1]
		fd, err := os.OpenFile(latest, os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		j.fd = fd

		stat, err := fd.Stat()
		if err != nil {
			return err
		}
		j.fileSize = stat.Size()

		// Parse segment index from name
		_, err = fmt.Sscanf(filepath.Base(latest), SegmentPrefix+".%d", &j.fileIndex)
		if err != nil {
			j.fileIndex = 0
		}

		// Scan for highest sequence number
		maxSeq, err := j.scanForHighestSeq(files)
		if err != nil {
			return err
		}
		atomic.StoreUint64(&j.seq, maxSeq)
	} else {
		// Create first segment
		segPath := j.segmentPath(0)
		if err := os.MkdirAll(j.Dir, 0755); err != nil {
			return err
		}
		fd, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		j.fd = fd
		j.fileSize = 0
		j.fileIndex = 0
		atomic.StoreUint64(&j.seq, 0)
	}

	j.closed = false
	return nil
}

// NextSeq returns the next sequence number
func (j *Journal) NextSeq() uint64 {
	return atomic.AddUint64(&j.seq, 1)
}

// Append writes an entry to the journal
func (j *Journal) Append(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	data := entry.Encode()

	// Check if rotation is needed
	if j.fileSize+int64(len(data)) > MaxSegmentSize {
		if err := j.rotateNoLock(); err != nil {
			return err
		}
	}

	n, err := j.fd.Write(data)
	if err != nil {
		return err
	}

	j.fileSize += int64(n)
	return nil
}

// Fsync ensures all written data is persisted to disk
func (j *Journal) Fsync() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	return j.fd.Sync()
}

// Close closes the journal
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	err := j.fd.Close()
	j.closed = true
	return err
}

// SizeOnDisk returns the total size of all segments
func (j *Journal) SizeOnDisk() (int64, error) {
	files, err := j.findSegments()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range files {
		stat, err := os.Stat(f)
		if err != nil {
			continue
		}
		total += stat.Size()
	}
	return total, nil
}

// rotateNoLock rotates to a new segment (caller must hold mu). Old
// segments are retained forever.
func (j *Journal) rotateNoLock() error {
	// Fsync current segment before closing
	if err := j.fd.Sync(); err != nil {
		return err
	}

	if err := j.fd.Close(); err != nil {
		return err
	}

	j.fileIndex++
	segPath := j.segmentPath(j.fileIndex)
	fd, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	j.fd = fd
	j.fileSize = 0
	return nil
}

// segmentPath returns the path for a segment with the given index
func (j *Journal) segmentPath(index int) string {
	name := fmt.Sprintf("%s.%06d", SegmentPrefix, index)
	return filepath.Join(j.Dir, name)
}

// findSegments returns all segment files sorted by index
func (j *Journal) findSegments() ([]string, error) {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && j.isSegment(entry.Name()) {
			files = append(files, filepath.Join(j.Dir, entry.Name()))
		}
	}

	sort.Slice(files, func(i, k int) bool {
		var idxI, idxK int
		fmt.Sscanf(filepath.Base(files[i]), SegmentPrefix+".%d", &idxI)
		fmt.Sscanf(filepath.Base(files[k]), SegmentPrefix+".%d", &idxK)
		return idxI < idxK
	})

	return files, nil
}

// isSegment returns true if the filename is a ledger segment
func (j *Journal) isSegment(name string) bool {
	var index int
	_, err := fmt.Sscanf(name, SegmentPrefix+".%d", &index)
	return err == nil
}

// scanForHighestSeq scans all segments and returns the highest sequence number
func (j *Journal) scanForHighestSeq(files []string) (uint64, error) {
	var maxSeq uint64

	for _, file := range files {
		fd, err := os.Open(file)
		if err != nil {
			return 0, err
		}

		for {
			entry, err := j.readEntry(fd)
			if err == io.EOF {
				break
			}
			if err != nil {
				// Skip damaged regions by seeking forward so a single
				// bad entry cannot wedge the scan
				fd.Seek(1024, io.SeekCurrent)
				continue
			}

			if entry.Seq > maxSeq {
				maxSeq = entry.Seq
			}
		}

		fd.Close()
	}

	return maxSeq, nil
}

// readEntry reads a single entry from the reader
func (j *Journal) readEntry(r io.Reader) (*Entry, error) {
	// Read header first
	header := make([]byte, EntryHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	// Parse path length
	pathLen := binary.LittleEndian.Uint32(header[40:44])

	// Read digest, path, and CRC32
	dataLen := DigestSize + int(pathLen) + 4
	data := make([]byte, EntryHeaderSize+dataLen)
	copy(data, header)
	if _, err := io.ReadFull(r, data[EntryHeaderSize:]); err != nil {
		return nil, err
	}

	return DecodeEntry(data)
}
