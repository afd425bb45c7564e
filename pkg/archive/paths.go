package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFilelist reads file paths from a list file, one per line. Blank
// lines and lines starting with '#' are ignored; surrounding whitespace
// is trimmed.
func ReadFilelist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return paths, nil
}

// NormalizePaths resolves each name against the root: relative names are
// joined to the root, absolute names are kept. All results are cleaned
// absolute paths.
func NormalizePaths(root string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if filepath.IsAbs(name) {
			out = append(out, filepath.Clean(name))
		} else {
			out = append(out, filepath.Join(root, name))
		}
	}
	return out
}

// IsUnder reports whether path lies under root (or equals it). Both must
// be absolute; neither is resolved through symlinks.
func IsUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ValidateItems checks that every item is an absolute path under the
// inputdata root
func ValidateItems(items []string, inputdataRoot string) error {
	for _, item := range items {
		if !filepath.IsAbs(item) {
			return fmt.Errorf("%w: %s is not absolute", ErrNotUnderRoot, item)
		}
		if !IsUnder(item, inputdataRoot) {
			return fmt.Errorf("%w: %s (root %s)", ErrNotUnderRoot, item, inputdataRoot)
		}
	}
	return nil
}

// ValidateTargetRoot checks that the target root exists, is a directory,
// and is not nested inside the inputdata root
func ValidateTargetRoot(targetRoot, inputdataRoot string) error {
	info, err := os.Stat(targetRoot)
	if err != nil {
		return fmt.Errorf("%w: %s does not exist", ErrNotADirectory, targetRoot)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, targetRoot)
	}
	if IsUnder(targetRoot, inputdataRoot) {
		return fmt.Errorf("%w: %s (root %s)", ErrTargetUnderRoot, targetRoot, inputdataRoot)
	}
	return nil
}

// ValidateDirectory checks that the path is an existing directory and
// returns it in absolute form
func ValidateDirectory(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s does not exist", ErrNotADirectory, abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}
	return abs, nil
}
