//go:build !linux

package fdpool

import "os"

// openFlags returns the open(2) flags for pool descriptors.
// O_DIRECT is Linux-only; the flag is ignored elsewhere.
func openFlags(direct bool) int {
	_ = direct
	return os.O_RDONLY
}
