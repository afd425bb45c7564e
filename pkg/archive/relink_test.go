package archive

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/samsrabin/inputdataTools/internal/logger"
)

func discardLogger() *logger.Logger {
	return logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})
}

// setupRelinkDirs creates an inputdata tree and a target tree containing
// the same relative file
func setupRelinkDirs(t *testing.T) (string, string, string) {
	t.Helper()

	inputRoot := t.TempDir()
	targetRoot := t.TempDir()

	rel := filepath.Join("lnd", "surfdata_c250101.nc")
	src := filepath.Join(inputRoot, rel)
	dst := filepath.Join(targetRoot, rel)

	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatalf("Failed to create dirs: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		t.Fatalf("Failed to create dirs: %v", err)
	}
	if err := os.WriteFile(src, []byte("archive copy"), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	if err := os.WriteFile(dst, []byte("archive copy"), 0644); err != nil {
		t.Fatalf("Failed to write target: %v", err)
	}

	return inputRoot, targetRoot, src
}

func TestReplaceOneCreatesSymlink(t *testing.T) {
	inputRoot, targetRoot, src := setupRelinkDirs(t)

	r := &Relinker{
		InputdataRoot: inputRoot,
		TargetRoot:    targetRoot,
		Log:           discardLogger(),
	}

	if err := r.ReplaceOne(src); err != nil {
		t.Fatalf("Failed to replace: %v", err)
	}

	info, err := os.Lstat(src)
	if err != nil {
		t.Fatalf("Failed to lstat: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("Expected a symlink")
	}

	target, err := os.Readlink(src)
	if err != nil {
		t.Fatalf("Failed to readlink: %v", err)
	}
	want := filepath.Join(targetRoot, "lnd", "surfdata_c250101.nc")
	if target != want {
		t.Errorf("Expected link to %s, got %s", want, target)
	}

	// Content readable through the link
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("Failed to read through link: %v", err)
	}
	if string(data) != "archive copy" {
		t.Errorf("Unexpected content: %q", data)
	}

	// Tmp copy cleaned up
	if _, err := os.Lstat(src + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected tmp copy to be removed")
	}
}

func TestReplaceOneMissingTargetSkips(t *testing.T) {
	inputRoot, targetRoot, src := setupRelinkDirs(t)

	// Remove the target so there is nothing to link to
	if err := os.Remove(filepath.Join(targetRoot, "lnd", "surfdata_c250101.nc")); err != nil {
		t.Fatalf("Failed to remove target: %v", err)
	}

	r := &Relinker{
		InputdataRoot: inputRoot,
		TargetRoot:    targetRoot,
		Log:           discardLogger(),
	}

	if err := r.ReplaceOne(src); err == nil {
		t.Error("Expected an error for a missing target")
	}

	// Original file untouched
	info, err := os.Lstat(src)
	if err != nil {
		t.Fatalf("Failed to lstat: %v", err)
	}
	if !info.Mode().IsRegular() {
		t.Error("Expected original file to remain a regular file")
	}
}

func TestReplaceOneDryRun(t *testing.T) {
	inputRoot, targetRoot, src := setupRelinkDirs(t)

	r := &Relinker{
		InputdataRoot: inputRoot,
		TargetRoot:    targetRoot,
		DryRun:        true,
		Log:           discardLogger(),
	}

	if err := r.ReplaceOne(src); err != nil {
		t.Fatalf("Dry run should not fail: %v", err)
	}

	info, err := os.Lstat(src)
	if err != nil {
		t.Fatalf("Failed to lstat: %v", err)
	}
	if !info.Mode().IsRegular() {
		t.Error("Dry run must not modify the file")
	}
}

func TestReplaceOneOutsideRoot(t *testing.T) {
	inputRoot, targetRoot, _ := setupRelinkDirs(t)

	other := t.TempDir()
	outside := filepath.Join(other, "file_c250101.nc")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	r := &Relinker{
		InputdataRoot: inputRoot,
		TargetRoot:    targetRoot,
		Log:           discardLogger(),
	}

	if err := r.ReplaceOne(outside); !errors.Is(err, ErrNotUnderRoot) {
		t.Errorf("Expected ErrNotUnderRoot, got %v", err)
	}
}

func TestRelinkToRestoresOriginalOnSymlinkFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "surfdata_c250101.nc")
	if err := os.WriteFile(src, []byte("only copy"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	// An empty link target cannot be created, so the rename succeeds and
	// the symlink step fails
	if err := relinkTo(src, ""); err == nil {
		t.Fatal("Expected symlink creation to fail")
	}

	info, err := os.Lstat(src)
	if err != nil {
		t.Fatalf("Original file must be restored: %v", err)
	}
	if !info.Mode().IsRegular() {
		t.Fatal("Expected restored original to be a regular file")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("Failed to read restored file: %v", err)
	}
	if string(data) != "only copy" {
		t.Errorf("Restored content mismatch: %q", data)
	}
	if _, err := os.Lstat(src + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected no tmp copy to remain")
	}
}

func TestRelinkOwnedFilesSweep(t *testing.T) {
	inputRoot, targetRoot, src := setupRelinkDirs(t)

	// Second file present only locally; it must be skipped
	localOnly := filepath.Join(inputRoot, "lnd", "localonly_c250102.nc")
	if err := os.WriteFile(localOnly, []byte("local"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	r := &Relinker{
		InputdataRoot: inputRoot,
		TargetRoot:    targetRoot,
		Log:           discardLogger(),
	}
	r.RelinkOwnedFiles(inputRoot, uint32(os.Getuid()))

	if info, _ := os.Lstat(src); info.Mode()&os.ModeSymlink == 0 {
		t.Error("Expected staged file to be relinked")
	}
	if info, _ := os.Lstat(localOnly); !info.Mode().IsRegular() {
		t.Error("Expected local-only file to be untouched")
	}
}
