// Package csvfile writes workspace CSV files. Rows go to a temporary
// sibling of the destination which is moved into place on commit, so a
// failed export never leaves a partial file behind.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Options configure the produced file. The zero value writes comma-separated
// UTF-8 with LF line endings and no byte order mark.
type Options struct {
	Comma   rune
	UseCRLF bool

	// BOM prepends the UTF-8 byte order mark for spreadsheet tools that
	// need it to pick the right encoding.
	BOM bool
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Writer struct {
	dest    string
	tmpPath string

	file *os.File
	csv  *csv.Writer

	committed bool
}

// Create opens a temporary file next to dest. The destination directory must
// already exist.
func Create(dest string, opts Options) (*Writer, error) {
	tmpPath := filepath.Join(
		filepath.Dir(dest),
		fmt.Sprintf("%s.tmp.%s", filepath.Base(dest), uuid.New().String()),
	)

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a temporary file")
	}

	if opts.BOM {
		_, err = file.Write(utf8BOM)
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)

			return nil, errors.Wrap(err, "failed to write the byte order mark")
		}
	}

	w := csv.NewWriter(file)
	if opts.Comma != 0 {
		w.Comma = opts.Comma
	}
	w.UseCRLF = opts.UseCRLF

	return &Writer{
		dest:    dest,
		tmpPath: tmpPath,
		file:    file,
		csv:     w,
	}, nil
}

// Write appends one record.
func (w *Writer) Write(record []string) error {
	err := w.csv.Write(record)
	if err != nil {
		return errors.Wrap(err, "failed to write a record")
	}

	return nil
}

// Commit flushes buffered rows and atomically renames the temporary file to
// the destination.
func (w *Writer) Commit() error {
	w.csv.Flush()

	err := w.csv.Error()
	if err != nil {
		return errors.Wrap(err, "failed to flush records")
	}

	err = w.file.Sync()
	if err != nil {
		return errors.Wrap(err, "failed to sync the file")
	}

	err = w.file.Close()
	if err != nil {
		return errors.Wrap(err, "failed to close the file")
	}

	err = os.Rename(w.tmpPath, w.dest)
	if err != nil {
		return errors.Wrap(err, "failed to move the file into place")
	}

	w.committed = true

	return nil
}

// Discard drops the temporary file. It is a no-op after a successful Commit
// and is safe to defer.
func (w *Writer) Discard() {
	if w.committed {
		return
	}

	_ = w.file.Close()
	_ = os.Remove(w.tmpPath)
}
