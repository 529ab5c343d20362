//go:build windows

package main

import (
	"os"
)

// terminationSignals are the signals that stop the bot gracefully. Windows
// only delivers os.Interrupt (Ctrl+C).
var terminationSignals = []os.Signal{os.Interrupt}
