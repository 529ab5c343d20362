//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are the signals that stop the bot gracefully. SIGTERM
// covers process managers (systemd, docker stop), os.Interrupt covers Ctrl+C.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
