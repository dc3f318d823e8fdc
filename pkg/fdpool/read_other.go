//go:build !unix

package fdpool

import (
	"errors"
	"io"
)

// readAt reads through os.File.ReadAt, normalizing io.EOF to the pread
// convention used on unix: a short or zero count with a nil error.
func (e *entry) readAt(p []byte, off int64) (int, error) {
	n, err := e.file.ReadAt(p, off)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}
