//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"memtunnel/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	lru "github.com/hashicorp/golang-lru"
)

const moduleCacheSize = 256

var _ process.Platform = (*LinuxPlatform)(nil)

// openHandle is what a process.Handle refers to on Linux: the target PID and its
// /proc/<pid>/mem file. Opening that file performs the kernel's ptrace access check,
// so it is the proof that memory access was granted.
type openHandle struct {
	pid    process.ProcessID
	rights process.AccessRights
	mem    *os.File
}

// LinuxPlatform implements process.Platform for Linux systems
type LinuxPlatform struct {
	log     *logger.Logger
	mu      sync.Mutex
	handles map[process.Handle]*openHandle
	next    process.Handle
	modules *lru.Cache
}

// New creates a new LinuxPlatform instance
func New() *LinuxPlatform {
	// lru.New only fails for a non-positive size
	modules, _ := lru.New(moduleCacheSize)

	return &LinuxPlatform{
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "linux")),
		handles: make(map[process.Handle]*openHandle),
		modules: modules,
	}
}

// OpenProcess opens /proc/<pid>/mem read-only, or read-write when AccessVMWrite is requested
func (p *LinuxPlatform) OpenProcess(rights process.AccessRights, pid process.ProcessID) (process.Handle, error) {
	if pid <= 0 || !procExists(int(pid)) {
		return process.InvalidHandle, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}

	flag := os.O_RDONLY
	if rights.Has(process.AccessVMWrite) {
		flag = os.O_RDWR
	}

	mem, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), flag, 0)
	if err != nil {
		return process.InvalidHandle, fmt.Errorf("open process %d: %w", pid, err)
	}

	p.mu.Lock()
	p.next++
	h := p.next
	p.handles[h] = &openHandle{pid: pid, rights: rights, mem: mem}
	p.mu.Unlock()

	p.log.Debugln("Opened handle", h, "for process", pid)

	return h, nil
}

// CloseHandle releases a handle. Closing an unknown handle is an error so that
// double closes are visible to the caller.
func (p *LinuxPlatform) CloseHandle(h process.Handle) error {
	p.mu.Lock()
	oh, ok := p.handles[h]
	delete(p.handles, h)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("close handle %d: %w", h, errInvalidHandle)
	}

	p.log.Debugln("Closing handle", h, "for process", oh.pid)

	return oh.mem.Close()
}

var errInvalidHandle = errors.New("invalid handle")

func (p *LinuxPlatform) lookup(h process.Handle) (*openHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	oh, ok := p.handles[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, errInvalidHandle)
	}
	return oh, nil
}
