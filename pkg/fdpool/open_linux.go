//go:build linux

package fdpool

import (
	"os"

	"golang.org/x/sys/unix"
)

// openFlags returns the open(2) flags for pool descriptors.
func openFlags(direct bool) int {
	flags := os.O_RDONLY
	if direct {
		flags |= unix.O_DIRECT
	}
	return flags
}
