//go:build !linux

package fdpool

// advise is a no-op on platforms without posix_fadvise.
func (e *entry) advise(advice Advice, off, length int64) error {
	_, _, _ = advice, off, length
	return nil
}
