package process

// Handle is an opaque operating-system handle granting memory access to a process.
type Handle uintptr

// InvalidHandle is the sentinel returned by a session that is not attached.
const InvalidHandle Handle = 0

// AccessRights is the set of rights requested when opening a process.
type AccessRights uint32

const (
	AccessVMOperation AccessRights = 0x0008
	AccessVMRead      AccessRights = 0x0010
	AccessVMWrite     AccessRights = 0x0020

	// AccessMemory is what a session requests on attach.
	AccessMemory = AccessVMRead | AccessVMWrite | AccessVMOperation
)

func (r AccessRights) Has(want AccessRights) bool {
	return r&want == want
}

// NativeMemory is the operating-system capability memtunnel consumes. Implementations
// report the number of bytes actually transferred; a count smaller than requested is a
// failure for callers even when err is nil.
type NativeMemory interface {
	// OpenProcess acquires a handle with the given rights to the process with the given PID
	OpenProcess(rights AccessRights, pid ProcessID) (Handle, error)

	// CloseHandle releases a handle acquired by OpenProcess
	CloseHandle(h Handle) error

	// ReadMemory copies len(buf) bytes starting at addr into buf
	ReadMemory(h Handle, addr ProcessMemoryAddress, buf []byte) (int, error)

	// WriteMemory copies data to addr
	WriteMemory(h Handle, addr ProcessMemoryAddress, data []byte) (int, error)
}

// Platform bundles everything a session needs from the host operating system.
type Platform interface {
	NativeMemory
	ProcessFinder
	ProcessController
}
