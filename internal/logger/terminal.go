//go:build darwin

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether the file descriptor is a terminal on macOS
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TIOCGETA)
	return err == nil
}
