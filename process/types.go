package process

import "sort"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	PPID ProcessID // Parent Process ID
	Name string    // Short process name (comm on Linux, image name on Windows)
	Exe  string    // Path to the executable, when it can be resolved
}

// SortByPID orders processes by ascending PID so "first match" is deterministic.
func SortByPID(list []ProcessInfo) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].PID < list[j].PID
	})
}
