package ledger

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// OpType represents the type of ledger operation
type OpType byte

const (
	// OpPublish records a file entering the archive (import step)
	OpPublish OpType = 1

	// OpRelink records the archive copy being replaced by a symlink into
	// the long-term collection
	OpRelink OpType = 2
)

const (
	// DigestSize is the size of the SHA-256 content digest
	DigestSize = 32

	// EntryHeaderSize is the fixed size of the entry header
	// Layout: Seq(8) + Op(1) + Reserved(3) + OwnerUID(4) + Size(8) +
	// Fingerprint(8) + Timestamp(8) + PathLen(4)
	EntryHeaderSize = 44
)

// Entry represents a single ledger entry
type Entry struct {
	Seq         uint64           // sequence number (monotonically increasing)
	Op          OpType           // operation type
	OwnerUID    uint32           // UID of the file owner at record time
	Size        int64            // file size in bytes
	Fingerprint uint64           // xxhash of the file content (cheap audit compare)
	Digest      [DigestSize]byte // SHA-256 of the file content
	Path        string           // path relative to the inputdata root
	Timestamp   time.Time        // entry timestamp
}

// Encode serializes the entry to bytes with a CRC32 trailer
// Format: [Header(44)] [Digest(32)] [Path] [CRC32(4)]
func (e *Entry) Encode() []byte {
	pathLen := len(e.Path)
	totalSize := EntryHeaderSize + DigestSize + pathLen + 4 // +4 for CRC32

	buf := make([]byte, totalSize)

	// Encode header
	binary.LittleEndian.PutUint64(buf[0:8], e.Seq)
	buf[8] = byte(e.Op)
	// bytes 9-11 are reserved (padding)
	binary.LittleEndian.PutUint32(buf[12:16], e.OwnerUID)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(e.Size))
	binary.LittleEndian.PutUint64(buf[24:32], e.Fingerprint)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(e.Timestamp.Unix()))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(pathLen))

	// Encode digest and path
	offset := EntryHeaderSize
	copy(buf[offset:], e.Digest[:])
	offset += DigestSize
	copy(buf[offset:], e.Path)
	offset += pathLen

	// Compute and append CRC32 checksum (excludes the CRC32 field itself)
	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:offset+4], crc)

	return buf
}

// DecodeEntry deserializes a ledger entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+DigestSize+4 {
		return nil, ErrTruncated
	}

	// Verify CRC32 checksum
	dataLen := len(data)
	storedCRC := binary.LittleEndian.Uint32(data[dataLen-4:])
	computedCRC := crc32.ChecksumIEEE(data[:dataLen-4])
	if storedCRC != computedCRC {
		return nil, ErrCorrupted
	}

	// Decode header
	entry := &Entry{
		Seq:         binary.LittleEndian.Uint64(data[0:8]),
		Op:          OpType(data[8]),
		OwnerUID:    binary.LittleEndian.Uint32(data[12:16]),
		Size:        int64(binary.LittleEndian.Uint64(data[16:24])),
		Fingerprint: binary.LittleEndian.Uint64(data[24:32]),
	}

	timestamp := binary.LittleEndian.Uint64(data[32:40])
	entry.Timestamp = time.Unix(int64(timestamp), 0)

	pathLen := binary.LittleEndian.Uint32(data[40:44])

	// Validate entry size
	expectedSize := EntryHeaderSize + DigestSize + int(pathLen) + 4
	if len(data) < expectedSize {
		return nil, ErrTruncated
	}

	offset := EntryHeaderSize
	copy(entry.Digest[:], data[offset:offset+DigestSize])
	offset += DigestSize

	if pathLen > 0 {
		entry.Path = string(data[offset : offset+int(pathLen)])
	}

	return entry, nil
}

// EncodedSize returns the encoded size of the entry
func (e *Entry) EncodedSize() int {
	return EntryHeaderSize + DigestSize + len(e.Path) + 4
}

// String returns a human-readable representation of the entry
func (e *Entry) String() string {
	opName := "UNKNOWN"
	switch e.Op {
	case OpPublish:
		opName = "PUBLISH"
	case OpRelink:
		opName = "RELINK"
	}
	return fmt.Sprintf("Ledger[Seq=%d Op=%s Path=%s Size=%d]",
		e.Seq, opName, e.Path, e.Size)
}
