package ledger

import (
	"encoding/binary"
	"io"
	"os"
)

// Reader reads ledger entries from segment files in order
type Reader struct {
	files   []string // segments to read
	current int      // current segment index
	fd      *os.File // current file descriptor
	offset  int64    // current offset in segment
}

// NewReader creates a reader for the given segment files
func NewReader(files []string) *Reader {
	return &Reader{
		files:   files,
		current: 0,
	}
}

// Open opens the reader
func (r *Reader) Open() error {
	if len(r.files) == 0 {
		return ErrNoSegments
	}

	fd, err := os.Open(r.files[0])
	if err != nil {
		return err
	}

	r.fd = fd
	r.offset = 0
	return nil
}

// Next reads the next entry
func (r *Reader) Next() (*Entry, error) {
	for {
		entry, err := r.readEntryFromCurrent()
		if err == nil {
			return entry, nil
		}

		// EOF on current segment - move to next
		if err == io.EOF {
			if err := r.nextFile(); err != nil {
				return nil, err // no more segments
			}
			continue
		}

		// Damaged entry - skip forward and continue
		if err == ErrCorrupted || err == ErrTruncated {
			if err := r.skipToNextEntry(); err != nil {
				return nil, err
			}
			continue
		}

		return nil, err
	}
}

// readEntryFromCurrent reads an entry from the current segment
func (r *Reader) readEntryFromCurrent() (*Entry, error) {
	if r.fd == nil {
		return nil, io.EOF
	}

	// Read header. A partial read is the tail a crash during append
	// leaves behind; treat it as a truncated entry, not a read failure.
	header := make([]byte, EntryHeaderSize)
	if _, err := io.ReadFull(r.fd, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	// Parse path length
	pathLen := binary.LittleEndian.Uint32(header[40:44])

	// Read rest of entry
	dataLen := DigestSize + int(pathLen) + 4
	data := make([]byte, EntryHeaderSize+dataLen)
	copy(data, header)

	if _, err := io.ReadFull(r.fd, data[EntryHeaderSize:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	r.offset += int64(EntryHeaderSize + dataLen)

	return DecodeEntry(data)
}

// nextFile moves to the next segment
func (r *Reader) nextFile() error {
	if r.fd != nil {
		r.fd.Close()
		r.fd = nil
	}

	r.current++
	if r.current >= len(r.files) {
		return io.EOF
	}

	fd, err := os.Open(r.files[r.current])
	if err != nil {
		return err
	}

	r.fd = fd
	r.offset = 0
	return nil
}

// skipToNextEntry attempts to skip damaged data and find the next valid entry
func (r *Reader) skipToNextEntry() error {
	// Simple strategy: skip 1KB and try again
	_, err := r.fd.Seek(1024, io.SeekCurrent)
	if err != nil {
		return err
	}
	r.offset += 1024
	return nil
}

// Close closes the reader
func (r *Reader) Close() error {
	if r.fd != nil {
		return r.fd.Close()
	}
	return nil
}

// ReadAll reads all entries from all segments
func ReadAll(files []string) ([]*Entry, error) {
	reader := NewReader(files)
	if err := reader.Open(); err != nil {
		return nil, err
	}
	defer reader.Close()

	var entries []*Entry
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
