// Package sanitize normalizes user-supplied file and folder names before
// they touch the workspace filesystem.
package sanitize

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultFilename is used when nothing survives filename sanitization.
	DefaultFilename = "export"

	// DefaultSubfolder is the workspace directory used when the requested
	// subfolder sanitizes to nothing.
	DefaultSubfolder = "sql_exports"
)

var disallowedChars = regexp.MustCompile(`[^\w.-]`)

// Filename reduces an arbitrary name to a safe CSV file name: everything up
// to the last path separator is dropped, characters outside [A-Za-z0-9_.-]
// become underscores, leading dots are stripped and the .csv extension is
// enforced. The function is idempotent.
func Filename(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	name = disallowedChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")

	if name == "" {
		name = DefaultFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}

	return name
}

// Subfolder reduces a requested workspace subpath to a safe relative path.
// Parent references are removed, every segment goes through the same
// character whitelist as file names (inner dots are allowed), and empty
// segments are dropped. An input that sanitizes to nothing falls back to
// DefaultSubfolder. The function is idempotent.
func Subfolder(path string) string {
	path = strings.ReplaceAll(path, "..", "")
	path = strings.Trim(path, "/")

	var cleaned []string
	for _, segment := range strings.Split(path, "/") {
		segment = disallowedChars.ReplaceAllString(segment, "_")
		segment = strings.Trim(segment, "_")
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}

	if len(cleaned) == 0 {
		return DefaultSubfolder
	}

	return strings.Join(cleaned, "/")
}

// ResolveDestination sanitizes both path parts, makes sure the target
// directory exists and returns the full destination path.
func ResolveDestination(root, subfolder, filename string) (string, error) {
	dir := filepath.Join(root, filepath.FromSlash(Subfolder(subfolder)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create workspace directory")
	}

	return filepath.Join(dir, Filename(filename)), nil
}
