//go:build windows

package main

import (
	"os"
	"os/signal"
)

// Only os.Interrupt is delivered reliably on Windows.
func setupSignalHandling(sigChan chan os.Signal) {
	signal.Notify(sigChan, os.Interrupt)
}
