//go:build !linux

package main

import "os"

// readInputDevices falls back to one blocking reader goroutine per device
// where epoll is unavailable.
func readInputDevices(files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}
