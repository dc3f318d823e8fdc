//go:build linux

package fdpool

import "golang.org/x/sys/unix"

// advise issues posix_fadvise(2) for the range. Length 0 means to the end
// of the file.
func (e *entry) advise(advice Advice, off, length int64) error {
	var flag int
	switch advice {
	case AdviceSequential:
		flag = unix.FADV_SEQUENTIAL
	case AdviceRandom:
		flag = unix.FADV_RANDOM
	case AdviceWillNeed:
		flag = unix.FADV_WILLNEED
	case AdviceDontNeed:
		flag = unix.FADV_DONTNEED
	default:
		return nil
	}
	return unix.Fadvise(e.fd, off, length, flag)
}
