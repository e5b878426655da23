package process

import "time"

// ProcessFinder defines operations for discovering processes and their modules
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by their name (exact match), ordered by ascending PID
	FindProcessByName(name string) ([]ProcessInfo, error)

	// FindAllProcesses returns information about all running processes
	FindAllProcesses() ([]ProcessInfo, error)

	// MainModuleBase returns the load address of the process's main executable module
	MainModuleBase(pid ProcessID) (ProcessMemoryAddress, error)

	// ModuleBase returns the load address of the named module, compared case-insensitively
	ModuleBase(pid ProcessID, module string) (ProcessMemoryAddress, error)
}

// ProcessController defines the operations used to end a target process
type ProcessController interface {
	// Terminate asks the process to exit
	Terminate(pid ProcessID) error

	// Kill ends the process immediately
	Kill(pid ProcessID) error

	// WaitExit waits until the process is gone or the timeout elapses.
	// Returns true if the process exited within the timeout.
	WaitExit(pid ProcessID, timeout time.Duration) bool
}
