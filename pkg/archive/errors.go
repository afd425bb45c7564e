// Package archive implements the file lifecycle of the shared inputdata
// tree: ownership-filtered tree walks, staging into the long-term storage
// collection, symlink replacement, and policy audit.
package archive

import "errors"

var (
	// ErrNotUnderRoot indicates an item outside the inputdata root
	ErrNotUnderRoot = errors.New("archive: item not under inputdata root")

	// ErrTargetUnderRoot indicates a target root nested inside the
	// inputdata root
	ErrTargetUnderRoot = errors.New("archive: target root must not be under inputdata root")

	// ErrNotADirectory indicates a path that is not an existing directory
	ErrNotADirectory = errors.New("archive: not a directory")

	// ErrRelinkVerify indicates the post-relink check failed: the archive
	// path is not a symlink pointing at the staged copy
	ErrRelinkVerify = errors.New("archive: error relinking during rimport")

	// ErrStagedContentDiffers indicates a staged file already exists with
	// different content. Published files are immutable; a replacement is a
	// new file with a new creation-date suffix.
	ErrStagedContentDiffers = errors.New("archive: staged copy exists with different content")

	// ErrWrongUser indicates the tool is running as the wrong account
	ErrWrongUser = errors.New("archive: wrong user for this operation")

	// ErrNotVisible indicates the staged copy never became visible on the
	// network mount within the probe window
	ErrNotVisible = errors.New("archive: staged copy not visible in collection")
)
