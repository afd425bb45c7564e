package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/samsrabin/inputdataTools/internal/logger"
	"github.com/samsrabin/inputdataTools/internal/metrics"
	"github.com/samsrabin/inputdataTools/pkg/ledger"
)

// VisibilityProbeWindow bounds the backoff probe for a freshly staged
// copy becoming visible on the network-mounted collection
const VisibilityProbeWindow = 30 * time.Second

// Stager copies archive files into the long-term storage collection,
// replaces the archive copy with a symlink, and verifies both steps.
type Stager struct {
	InputdataRoot string
	StagingRoot   string
	Check         bool // report only, change nothing
	Log           *logger.Logger
	Metrics       *metrics.Metrics
	Ledger        *ledger.Ledger // optional; records publications when set
}

// StageFile publishes one file: copy to the collection at the same
// relative path, relink the archive copy, verify.
func (s *Stager) StageFile(src string) error {
	start := time.Now()
	log := s.Log.FileLogger(src)

	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if !IsUnder(src, s.InputdataRoot) {
		return fmt.Errorf("%w: %s (root %s)", ErrNotUnderRoot, src, s.InputdataRoot)
	}

	relPath, err := filepath.Rel(s.InputdataRoot, src)
	if err != nil {
		return err
	}
	dst := filepath.Join(s.StagingRoot, relPath)

	// An archive path that is already a symlink was already imported
	if info, err := os.Lstat(src); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := CheckRelinkWorked(src, dst); err != nil {
			return err
		}
		log.Info().Str("dst", dst).Msg("already published")
		return nil
	}

	// Content digest before anything moves; also feeds the ledger
	digest, fingerprint, size, err := FileDigest(src)
	if err != nil {
		return fmt.Errorf("cannot digest %s: %w", src, err)
	}

	uid, err := OwnerUID(src)
	if err != nil {
		return err
	}

	if s.Check {
		// A real run would refuse this name; the check reports it too
		if s.Ledger != nil {
			if rec, ok := s.Ledger.Lookup(filepath.ToSlash(relPath)); ok && rec.Digest != digest {
				return fmt.Errorf("%w: %s", ledger.ErrNameReused, relPath)
			}
		}
		log.Info().
			Str("dst", dst).
			Int64("size", size).
			Msg("[CHECK] would stage file")
		return nil
	}

	// A published filename is never reused for different content
	if _, err := os.Stat(dst); err == nil {
		dstDigest, _, _, err := FileDigest(dst)
		if err != nil {
			return fmt.Errorf("cannot digest staged copy %s: %w", dst, err)
		}
		if dstDigest != digest {
			return fmt.Errorf("%w: %s", ErrStagedContentDiffers, dst)
		}
		log.Info().Str("dst", dst).Msg("already staged with identical content")
	} else {
		if err := copyFile(src, dst); err != nil {
			s.recordOp("stage", "error", start)
			return fmt.Errorf("copy to collection failed: %w", err)
		}
		log.Info().Str("dst", dst).Int64("size", size).Msg("copied to collection")
		if s.Metrics != nil {
			s.Metrics.FilesStaged.Inc()
			s.Metrics.BytesStaged.Add(float64(size))
		}
	}

	// Record publication before deleting anything local
	if s.Ledger != nil {
		err := s.Ledger.RecordPublish(filepath.ToSlash(relPath), digest, fingerprint, size, uid)
		s.recordLedger("publish", err)
		if err != nil {
			return err
		}
	}

	// Replace the archive copy with a symlink to the staged copy
	if err := relinkTo(src, dst); err != nil {
		s.recordOp("stage", "error", start)
		return err
	}

	if err := CheckRelinkWorked(src, dst); err != nil {
		return err
	}

	// The collection is network-mounted; give it a bounded window to
	// surface the new file before declaring failure
	if err := s.waitUntilVisible(dst); err != nil {
		return err
	}

	if s.Ledger != nil {
		err := s.Ledger.RecordRelink(filepath.ToSlash(relPath))
		s.recordLedger("relink", err)
		if err != nil {
			return err
		}
	}

	log.Info().Str("dst", dst).Msg("published")
	s.recordOp("stage", "success", start)
	if s.Metrics != nil {
		s.Metrics.FilesRelinked.Inc()
	}
	return nil
}

// CheckRelinkWorked verifies that src is now a symlink pointing at dst
func CheckRelinkWorked(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("%w: cannot stat %s: %v", ErrRelinkVerify, src, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%w: %s is not a symlink", ErrRelinkVerify, src)
	}

	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("%w: cannot read link %s: %v", ErrRelinkVerify, src, err)
	}
	if filepath.Clean(target) != filepath.Clean(dst) {
		return fmt.Errorf("%w: %s points at %s, expected %s", ErrRelinkVerify, src, target, dst)
	}
	return nil
}

// CanFileBeDownloaded reports whether the file is present and readable
// in the collection. A relative path is resolved against the staging
// root; an absolute path is checked as-is.
func CanFileBeDownloaded(path, stagingRoot string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(stagingRoot, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// waitUntilVisible probes for the staged copy with exponential backoff.
// Transient ENOENT/EIO from the network mount are expected right after a
// copy; authentication and permission errors are not retried anywhere.
func (s *Stager) waitUntilVisible(dst string) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = VisibilityProbeWindow

	probe := func() error {
		if !CanFileBeDownloaded(dst, s.StagingRoot) {
			return fmt.Errorf("%w: %s", ErrNotVisible, dst)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.Log.Warn().Err(err).Dur("retry_in", wait).Msg("staged copy not visible yet")
	}

	return backoff.RetryNotify(probe, b, notify)
}

// relinkTo replaces src with a symlink to dst, restoring src on failure
func relinkTo(src, dst string) error {
	tmpPath := src + ".tmp"
	if err := os.Rename(src, tmpPath); err != nil {
		return err
	}

	if err := os.Symlink(dst, src); err != nil {
		os.Rename(tmpPath, src)
		return err
	}

	return os.Remove(tmpPath)
}

// copyFile copies src to dst, creating parent directories. The copy is
// written to a temporary name and renamed into place so a crashed copy
// never leaves a partial file at the final path.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dst)
}

func (s *Stager) recordOp(op, status string, start time.Time) {
	if s.Metrics != nil {
		s.Metrics.RecordOperation(op, status, time.Since(start))
	}
}

func (s *Stager) recordLedger(op string, err error) {
	if s.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.Metrics.RecordLedgerAppend(op, status)
}
