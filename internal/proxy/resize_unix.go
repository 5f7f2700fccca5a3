//go:build !windows

package proxy

import (
	"os"
	"syscall"
)

// resizeSignal is the signal delivered when the controlling terminal is
// resized, used to keep the allocated pty's window size in sync.
func resizeSignal() os.Signal { return syscall.SIGWINCH }
