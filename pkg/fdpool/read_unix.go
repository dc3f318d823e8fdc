//go:build unix

package fdpool

import "golang.org/x/sys/unix"

// readAt issues a single pread(2). At or past end of file it returns
// (0, nil); a short count means the range crossed end of file. Interrupted
// reads are retried.
func (e *entry) readAt(p []byte, off int64) (int, error) {
	for {
		n, err := unix.Pread(e.fd, p, off)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}
