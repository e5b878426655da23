//go:build linux

package main

import (
	"memtunnel/process"
	"memtunnel/process_linux"
)

func getPlatform() process.Platform {
	return process_linux.New()
}
