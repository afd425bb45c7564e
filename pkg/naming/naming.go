// Package naming parses the inputdata filename convention.
//
// The convention is informative rather than machine-enforced: filenames
// carry the spatial resolution, applicable year or year span, source
// institution or project, a creation-date suffix in the fixed six-digit
// cYYMMDD form, and optionally the originating simulation case and other
// distinguishing attributes. The parser serves audit and human review; it
// never blocks an operation on its own.
package naming

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNoCreationDate indicates a filename without a cYYMMDD suffix
	ErrNoCreationDate = errors.New("naming: no creation-date suffix")

	// ErrBadCreationDate indicates a cNNNNNN token that is not a real date
	ErrBadCreationDate = errors.New("naming: invalid creation-date suffix")
)

// creationDateRe matches a cYYMMDD token, e.g. "c221214" in
// ne3pg3_ESMFmesh_c221214_cdf5.asc
var creationDateRe = regexp.MustCompile(`^c(\d{6})$`)

// resolutionRe matches grid resolution tokens like 0.9x1.25, 4x5, ne30np4,
// ne3pg3, T62
var resolutionRe = regexp.MustCompile(`^(\d+(\.\d+)?x\d+(\.\d+)?|ne\d+(np\d+|pg\d+)?|T\d+|fv\d+(\.\d+)?x\d+(\.\d+)?)$`)

// yearsRe matches an applicable year or year span, e.g. 2000 or 1850-2015
var yearsRe = regexp.MustCompile(`^(\d{4})(-\d{4})?$`)

// Filename holds the parsed convention fields of one filename
type Filename struct {
	Name         string    // base name as given
	CreationDate time.Time // parsed from the cYYMMDD token
	HasDate      bool      // whether a valid cYYMMDD token was found
	Resolution   string    // first token matching a known grid form, if any
	Years        string    // first token matching a year or year span, if any
	Tokens       []string  // underscore-separated tokens, extension stripped
}

// Parse extracts the convention fields from a file path's base name
func Parse(path string) Filename {
	name := filepath.Base(path)

	fn := Filename{Name: name}

	if date, err := CreationDate(name); err == nil {
		fn.CreationDate = date
		fn.HasDate = true
	}

	// Strip the extension before tokenizing attribute fields. Fields
	// split on underscores only: dots appear inside resolutions like
	// 0.9x1.25 and inside case names.
	stem := name
	if ext := filepath.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}

	fn.Tokens = strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_'
	})

	for _, tok := range fn.Tokens {
		if fn.Resolution == "" && resolutionRe.MatchString(tok) {
			fn.Resolution = tok
			continue
		}
		if fn.Years == "" && yearsRe.MatchString(tok) {
			fn.Years = tok
		}
	}

	return fn
}

// CreationDate parses the six-digit cYYMMDD creation-date suffix from a
// filename. Returns ErrNoCreationDate if no such token exists, or
// ErrBadCreationDate if the candidate token is not a calendar date.
func CreationDate(name string) (time.Time, error) {
	tokens := strings.FieldsFunc(filepath.Base(name), func(r rune) bool {
		return r == '_' || r == '.'
	})

	// A name can contain several cNNNNNN tokens (e.g. a case's simulation
	// date plus the file's own creation date); the creation date is the
	// last one.
	raw := ""
	for _, tok := range tokens {
		if m := creationDateRe.FindStringSubmatch(tok); m != nil {
			raw = m[1]
		}
	}
	if raw == "" {
		return time.Time{}, ErrNoCreationDate
	}

	date, err := time.Parse("060102", raw)
	if err != nil {
		return time.Time{}, ErrBadCreationDate
	}
	return date, nil
}

// HasCreationDate reports whether the filename carries a parseable
// cYYMMDD creation-date suffix
func HasCreationDate(name string) bool {
	_, err := CreationDate(name)
	return err == nil
}
