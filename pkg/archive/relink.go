package archive

import (
	"os"
	"path/filepath"
	"time"

	"github.com/samsrabin/inputdataTools/internal/logger"
	"github.com/samsrabin/inputdataTools/internal/metrics"
	"github.com/samsrabin/inputdataTools/pkg/ledger"
)

// Relinker replaces archive copies with symbolic links to the same
// relative path under the target root. Deleting the local copy is
// irreversible; the only rollback is the tmp-rename window within a
// single file's replacement.
type Relinker struct {
	InputdataRoot string
	TargetRoot    string
	DryRun        bool
	Log           *logger.Logger
	Metrics       *metrics.Metrics
	Ledger        *ledger.Ledger // optional; records relinks when set
}

// RelinkOwnedFiles finds files under item owned by uid and replaces each
// with a symlink. item may be a directory to sweep or a single file.
func (r *Relinker) RelinkOwnedFiles(item string, uid uint32) {
	item, err := filepath.Abs(item)
	if err != nil {
		r.Log.Error().Str("path", item).Err(err).Msg("cannot resolve item")
		return
	}

	if r.DryRun {
		r.Log.Info().Msg("DRY RUN MODE - no changes will be made")
	}

	r.Log.Info().
		Str("item", item).
		Uint32("uid", uid).
		Msg("searching for owned files")

	walker := &Walker{UID: uid, Log: r.Log, Metrics: r.Metrics}
	walker.Walk(item, func(path string) {
		r.ReplaceOne(path)
	})
}

// ReplaceOne replaces a single archive file with a symlink to the
// corresponding path under the target root. Returns the error that caused
// a skip, or nil when the file was replaced (or would be, in dry-run).
func (r *Relinker) ReplaceOne(filePath string) error {
	start := time.Now()
	log := r.Log.FileLogger(filePath)

	relPath, err := filepath.Rel(r.InputdataRoot, filePath)
	if err != nil || !IsUnder(filePath, r.InputdataRoot) {
		log.Error().Str("root", r.InputdataRoot).Msg("file not under inputdata root, skipping")
		r.recordSkip("outside_root")
		return ErrNotUnderRoot
	}

	linkTarget := filepath.Join(r.TargetRoot, relPath)

	// The corresponding file must already exist in the collection
	if _, err := os.Stat(linkTarget); err != nil {
		log.Warn().Str("target", linkTarget).Msg("corresponding file not found, skipping")
		r.recordSkip("missing_target")
		return err
	}

	if r.DryRun {
		log.Info().
			Str("target", linkTarget).
			Msg("[DRY RUN] would create symbolic link")
		return nil
	}

	// Move the original aside and swap in the symlink; the original is
	// restored if symlink creation fails
	if err := relinkTo(filePath, linkTarget); err != nil {
		log.Error().Err(err).Msg("error replacing file with symlink, skipping")
		r.recordOp("relink", "error", start)
		return err
	}

	log.Info().Str("target", linkTarget).Msg("created symbolic link")
	r.recordOp("relink", "success", start)
	if r.Metrics != nil {
		r.Metrics.FilesRelinked.Inc()
	}

	if r.Ledger != nil {
		err := r.Ledger.RecordRelink(filepath.ToSlash(relPath))
		if err != nil {
			// An unledgered file predates the ledger; note and move on
			log.Debug().Err(err).Msg("relink not recorded in ledger")
		}
		if r.Metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			r.Metrics.RecordLedgerAppend("relink", status)
		}
	}

	return nil
}

func (r *Relinker) recordSkip(reason string) {
	if r.Metrics != nil {
		r.Metrics.FilesSkipped.WithLabelValues(reason).Inc()
	}
}

func (r *Relinker) recordOp(op, status string, start time.Time) {
	if r.Metrics != nil {
		r.Metrics.RecordOperation(op, status, time.Since(start))
	}
}
