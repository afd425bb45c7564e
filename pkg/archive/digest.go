package archive

import (
	"crypto/sha256"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Digest is a SHA-256 content digest
type Digest = [sha256.Size]byte

// FileDigest computes the SHA-256 digest, xxhash fingerprint, and size of
// a file's content in a single pass. The digest is the content's identity
// in the ledger; the fingerprint is what audits compare first.
func FileDigest(path string) (Digest, uint64, int64, error) {
	var digest Digest

	f, err := os.Open(path)
	if err != nil {
		return digest, 0, 0, err
	}
	defer f.Close()

	sha := sha256.New()
	xx := xxhash.New()
	n, err := io.Copy(io.MultiWriter(sha, xx), f)
	if err != nil {
		return digest, 0, 0, err
	}

	copy(digest[:], sha.Sum(nil))
	return digest, xx.Sum64(), n, nil
}

// FastFingerprint computes only the xxhash fingerprint of a file's
// content. Audits use it to cheaply screen a staged copy against its
// ledger record before paying for a cryptographic digest.
func FastFingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
