//go:build windows

package main

import (
	"memtunnel/process"
	"memtunnel/process_windows"
)

func getPlatform() process.Platform {
	return process_windows.New()
}
