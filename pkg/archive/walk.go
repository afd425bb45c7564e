package archive

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/samsrabin/inputdataTools/internal/logger"
	"github.com/samsrabin/inputdataTools/internal/metrics"
)

// Walker finds regular files owned by a specific user in a directory
// tree. Symlinks are never followed and never reported; per-entry access
// errors are logged and skipped so one unreadable directory cannot abort
// a sweep.
type Walker struct {
	UID     uint32
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// Walk visits every regular file under item owned by the walker's UID.
// item may also be a single file, in which case it is checked directly.
func (w *Walker) Walk(item string, visit func(path string)) {
	info, err := os.Lstat(item)
	if err != nil {
		w.logSkip(item, err)
		return
	}

	if !info.IsDir() {
		if path, ok := w.checkNonDir(item, info); ok {
			visit(path)
		}
		return
	}

	w.walkDir(item, visit)
}

// walkDir recursively scans one directory
func (w *Walker) walkDir(dir string, visit func(path string)) {
	if w.Metrics != nil {
		w.Metrics.DirsScanned.Inc()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logSkip(dir, err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// Recurse into directories, not following symlinks
		if entry.IsDir() {
			w.walkDir(path, visit)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			w.logSkip(path, err)
			continue
		}

		if filePath, ok := w.checkNonDir(path, info); ok {
			visit(filePath)
		}
	}
}

// checkNonDir decides whether a non-directory entry should be processed:
// it must be owned by the walker's UID and be a regular file, not a
// symlink.
func (w *Walker) checkNonDir(path string, info os.FileInfo) (string, bool) {
	uid, ok := ownerUID(info)
	if !ok || uid != w.UID {
		return "", false
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if w.Log != nil {
			w.Log.Debug().Str("path", path).Msg("skipping symlink")
		}
		if w.Metrics != nil {
			w.Metrics.SymlinksSkipped.Inc()
		}
		return "", false
	}

	if !info.Mode().IsRegular() {
		return "", false
	}

	if w.Metrics != nil {
		w.Metrics.FilesScanned.Inc()
	}
	return path, true
}

// logSkip reports an access error and moves on
func (w *Walker) logSkip(path string, err error) {
	if w.Log != nil {
		w.Log.Error().Str("path", path).Err(err).Msg("error accessing entry, skipping")
	}
	if w.Metrics != nil {
		w.Metrics.WalkErrors.Inc()
	}
}

// ownerUID extracts the owning UID from a FileInfo
func ownerUID(info os.FileInfo) (uint32, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return st.Uid, true
}

// OwnerUID returns the UID owning the file at path, without following a
// final symlink
func OwnerUID(path string) (uint32, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	uid, ok := ownerUID(info)
	if !ok {
		return 0, syscall.ENOTSUP
	}
	return uid, nil
}
