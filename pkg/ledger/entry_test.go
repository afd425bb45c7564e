package ledger

import (
	"crypto/sha256"
	"testing"
	"time"
)

func testEntry() Entry {
	return Entry{
		Seq:         7,
		Op:          OpPublish,
		OwnerUID:    1234,
		Size:        987654321,
		Fingerprint: 0xdeadbeefcafe,
		Digest:      sha256.Sum256([]byte("file content")),
		Path:        "lnd/clm2/surfdata_esmf/surfdata_0.9x1.25_c221214.nc",
		Timestamp:   time.Unix(1700000000, 0),
	}
}

func TestEntryEncodeDecode(t *testing.T) {
	entry := testEntry()

	data := entry.Encode()
	if len(data) != entry.EncodedSize() {
		t.Errorf("Encoded length %d != EncodedSize %d", len(data), entry.EncodedSize())
	}

	decoded, err := DecodeEntry(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if decoded.Seq != entry.Seq {
		t.Errorf("Seq: expected %d, got %d", entry.Seq, decoded.Seq)
	}
	if decoded.Op != entry.Op {
		t.Errorf("Op: expected %d, got %d", entry.Op, decoded.Op)
	}
	if decoded.OwnerUID != entry.OwnerUID {
		t.Errorf("OwnerUID: expected %d, got %d", entry.OwnerUID, decoded.OwnerUID)
	}
	if decoded.Size != entry.Size {
		t.Errorf("Size: expected %d, got %d", entry.Size, decoded.Size)
	}
	if decoded.Fingerprint != entry.Fingerprint {
		t.Errorf("Fingerprint: expected %x, got %x", entry.Fingerprint, decoded.Fingerprint)
	}
	if decoded.Digest != entry.Digest {
		t.Errorf("Digest mismatch")
	}
	if decoded.Path != entry.Path {
		t.Errorf("Path: expected %q, got %q", entry.Path, decoded.Path)
	}
	if !decoded.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp: expected %v, got %v", entry.Timestamp, decoded.Timestamp)
	}
}

func TestDecodeCorruptedEntry(t *testing.T) {
	entry := testEntry()
	data := entry.Encode()

	// Flip a byte in the path region
	data[EntryHeaderSize+DigestSize+2] ^= 0xff

	if _, err := DecodeEntry(data); err != ErrCorrupted {
		t.Errorf("Expected ErrCorrupted, got %v", err)
	}
}

func TestDecodeTruncatedEntry(t *testing.T) {
	entry := testEntry()
	data := entry.Encode()

	if _, err := DecodeEntry(data[:EntryHeaderSize]); err != ErrTruncated {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
}

func TestEntryString(t *testing.T) {
	entry := testEntry()
	s := entry.String()
	if s == "" {
		t.Error("Expected non-empty string")
	}

	entry.Op = OpRelink
	if entry.String() == s {
		t.Error("Expected different string for different op")
	}
}
