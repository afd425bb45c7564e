package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samsrabin/inputdataTools/internal/logger"
	"github.com/samsrabin/inputdataTools/internal/metrics"
	"github.com/samsrabin/inputdataTools/pkg/ledger"
	"github.com/samsrabin/inputdataTools/pkg/naming"
)

// Audit check names
const (
	CheckLinkResolves = "link_resolves"
	CheckOwnership    = "ownership"
	CheckDateSuffix   = "date_suffix"
	CheckLedgerReuse  = "ledger_reuse"
	CheckLedgerMatch  = "ledger_match"
)

// Violation is one audit finding
type Violation struct {
	Check  string
	Path   string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Check, v.Path, v.Detail)
}

// Report is the outcome of one audit run
type Report struct {
	FilesChecked int
	LinksChecked int
	Violations   []Violation
}

// Ok reports whether the audit found no violations
func (r *Report) Ok() bool {
	return len(r.Violations) == 0
}

// Auditor verifies the policy invariants over the archive tree, the
// long-term collection, and the publication ledger. It never modifies
// anything.
type Auditor struct {
	InputdataRoot string
	StagingRoot   string
	RelinkUID     uint32 // user expected to own files awaiting relink
	Log           *logger.Logger
	Metrics       *metrics.Metrics
	Ledger        *ledger.Ledger // optional
}

// Run walks the given item (defaulting to the inputdata root) and checks
// every invariant it can reach.
func (a *Auditor) Run(item string) (*Report, error) {
	if item == "" {
		item = a.InputdataRoot
	}
	item, err := filepath.Abs(item)
	if err != nil {
		return nil, err
	}
	if !IsUnder(item, a.InputdataRoot) {
		return nil, fmt.Errorf("%w: %s", ErrNotUnderRoot, item)
	}

	report := &Report{}

	a.walkTree(item, report)
	a.checkLedger(report)

	return report, nil
}

// walkTree checks per-file invariants: symlinks must resolve to readable
// content in the collection, regular files must be owned by the relink
// user and carry a creation-date suffix.
func (a *Auditor) walkTree(dir string, report *Report) {
	info, err := os.Lstat(dir)
	if err != nil {
		a.Log.Error().Str("path", dir).Err(err).Msg("error accessing item, skipping")
		return
	}
	if !info.IsDir() {
		a.checkEntry(dir, info, report)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		a.Log.Error().Str("path", dir).Err(err).Msg("error accessing directory, skipping")
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			a.walkTree(path, report)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			a.Log.Error().Str("path", path).Err(err).Msg("error accessing entry, skipping")
			continue
		}
		a.checkEntry(path, info, report)
	}
}

// checkEntry checks one non-directory entry
func (a *Auditor) checkEntry(path string, info os.FileInfo, report *Report) {
	// Ledger segments live under the inputdata root but are not data
	if IsUnder(path, filepath.Join(a.InputdataRoot, ".publication-ledger")) {
		return
	}

	report.FilesChecked++

	// Filenames must carry a parseable creation-date suffix
	a.countCheck(CheckDateSuffix)
	if _, err := naming.CreationDate(path); err != nil {
		a.addViolation(report, Violation{
			Check:  CheckDateSuffix,
			Path:   path,
			Detail: err.Error(),
		})
	}

	if info.Mode()&os.ModeSymlink != 0 {
		a.checkLink(path, report)
		return
	}

	// Pre-relink files must be owned by the user who will run relink
	a.countCheck(CheckOwnership)
	if uid, ok := ownerUID(info); ok && uid != a.RelinkUID {
		a.addViolation(report, Violation{
			Check:  CheckOwnership,
			Path:   path,
			Detail: fmt.Sprintf("owned by uid %d, relink will run as uid %d", uid, a.RelinkUID),
		})
	}
}

// checkLink verifies a relinked path resolves to readable content in the
// collection
func (a *Auditor) checkLink(path string, report *Report) {
	report.LinksChecked++
	a.countCheck(CheckLinkResolves)

	target, err := os.Readlink(path)
	if err != nil {
		a.addViolation(report, Violation{Check: CheckLinkResolves, Path: path, Detail: err.Error()})
		return
	}

	// A relative target resolves from the link's own directory
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(path), resolved)
	}

	if !IsUnder(resolved, a.StagingRoot) {
		a.addViolation(report, Violation{
			Check:  CheckLinkResolves,
			Path:   path,
			Detail: fmt.Sprintf("link target %s outside collection %s", target, a.StagingRoot),
		})
		return
	}

	f, err := os.Open(path) // follows the link
	if err != nil {
		a.addViolation(report, Violation{
			Check:  CheckLinkResolves,
			Path:   path,
			Detail: fmt.Sprintf("target not readable: %v", err),
		})
		return
	}
	f.Close()
}

// checkLedger verifies the never-reuse invariant and cross-checks staged
// content against recorded digests
func (a *Auditor) checkLedger(report *Report) {
	if a.Ledger == nil {
		return
	}

	a.countCheck(CheckLedgerReuse)
	for _, c := range a.Ledger.Conflicts() {
		a.addViolation(report, Violation{
			Check:  CheckLedgerReuse,
			Path:   c.Path,
			Detail: fmt.Sprintf("recorded with two different digests (seq %d)", c.Seq),
		})
	}

	a.Ledger.Each(func(rec *ledger.Record) {
		if rec.State != ledger.StateRelinked {
			return
		}
		a.countCheck(CheckLedgerMatch)

		staged := filepath.Join(a.StagingRoot, filepath.FromSlash(rec.Path))

		info, err := os.Stat(staged)
		if err != nil {
			a.addViolation(report, Violation{
				Check:  CheckLedgerMatch,
				Path:   rec.Path,
				Detail: fmt.Sprintf("staged copy missing: %v", err),
			})
			return
		}
		if info.Size() != rec.Size {
			a.addViolation(report, Violation{
				Check:  CheckLedgerMatch,
				Path:   rec.Path,
				Detail: fmt.Sprintf("staged size %d != recorded %d", info.Size(), rec.Size),
			})
			return
		}

		// Fingerprint first; the SHA-256 digest is only computed to
		// confirm a suspected mismatch
		fingerprint, err := FastFingerprint(staged)
		if err != nil {
			a.addViolation(report, Violation{
				Check:  CheckLedgerMatch,
				Path:   rec.Path,
				Detail: fmt.Sprintf("staged copy unreadable: %v", err),
			})
			return
		}
		if fingerprint == rec.Fingerprint {
			return
		}

		digest, _, _, err := FileDigest(staged)
		if err != nil {
			a.addViolation(report, Violation{
				Check:  CheckLedgerMatch,
				Path:   rec.Path,
				Detail: fmt.Sprintf("cannot digest staged copy: %v", err),
			})
			return
		}
		if digest != rec.Digest {
			a.addViolation(report, Violation{
				Check:  CheckLedgerMatch,
				Path:   rec.Path,
				Detail: "staged content does not match recorded digest",
			})
		}
	})
}

func (a *Auditor) countCheck(check string) {
	if a.Metrics != nil {
		a.Metrics.AuditChecksTotal.WithLabelValues(check).Inc()
	}
}

func (a *Auditor) addViolation(report *Report, v Violation) {
	report.Violations = append(report.Violations, v)
	a.Log.Warn().Str("check", v.Check).Str("path", v.Path).Msg(v.Detail)
	if a.Metrics != nil {
		a.Metrics.AuditViolationsTotal.WithLabelValues(v.Check).Inc()
	}
}
