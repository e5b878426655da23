package process_blob

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"memtunnel/process"
)

var _ process.Platform = (*Platform)(nil)

// ErrAccessDenied is returned by OpenProcess for images marked with SetDenied
var ErrAccessDenied = errors.New("access denied")

// ErrAddressNotMapped is returned when the first byte of a transfer is not mapped
var ErrAddressNotMapped = errors.New("address not mapped")

// Transfer records one ReadMemory or WriteMemory call
type Transfer struct {
	Handle  process.Handle
	Address process.ProcessMemoryAddress
	Size    int
}

// Platform is an in-memory process.Platform made of ProcessImages. It keeps a log of
// every transfer and handle operation so callers can check what was touched.
type Platform struct {
	mu      sync.Mutex
	images  map[process.ProcessID]*ProcessImage
	handles map[process.Handle]process.ProcessID
	next    process.Handle
	closes  map[process.Handle]int
	reads   []Transfer
	writes  []Transfer
}

// NewPlatform creates an empty Platform
func NewPlatform() *Platform {
	return &Platform{
		images:  make(map[process.ProcessID]*ProcessImage),
		handles: make(map[process.Handle]process.ProcessID),
		closes:  make(map[process.Handle]int),
	}
}

// AddProcess registers a running process image
func (p *Platform) AddProcess(pid process.ProcessID, name string) *ProcessImage {
	p.mu.Lock()
	defer p.mu.Unlock()

	img := &ProcessImage{
		PID:     pid,
		Name:    name,
		modules: make(map[string]process.ProcessMemoryAddress),
		alive:   true,
	}
	p.images[pid] = img
	return img
}

func (p *Platform) image(pid process.ProcessID) (*ProcessImage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img, ok := p.images[pid]
	if !ok || !img.Alive() {
		return nil, false
	}
	return img, true
}

func (p *Platform) OpenProcess(rights process.AccessRights, pid process.ProcessID) (process.Handle, error) {
	img, ok := p.image(pid)
	if !ok {
		return process.InvalidHandle, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}

	img.mu.Lock()
	denied := img.denied
	img.mu.Unlock()
	if denied {
		return process.InvalidHandle, fmt.Errorf("open process %d: %w", pid, ErrAccessDenied)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	p.handles[p.next] = pid
	return p.next, nil
}

// CloseHandle fails for handles that are unknown or already closed
func (p *Platform) CloseHandle(h process.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closes[h]++
	if _, ok := p.handles[h]; !ok {
		return fmt.Errorf("close handle %d: invalid handle", h)
	}
	delete(p.handles, h)
	return nil
}

func (p *Platform) handleImage(h process.Handle) (*ProcessImage, error) {
	p.mu.Lock()
	pid, ok := p.handles[h]
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("handle %d: invalid handle", h)
	}
	img, ok := p.image(pid)
	if !ok {
		return nil, fmt.Errorf("process %d has exited", pid)
	}
	return img, nil
}

func (p *Platform) ReadMemory(h process.Handle, addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	p.mu.Lock()
	p.reads = append(p.reads, Transfer{Handle: h, Address: addr, Size: len(buf)})
	p.mu.Unlock()

	img, err := p.handleImage(h)
	if err != nil {
		return 0, err
	}

	n := img.read(addr, buf)
	if n == 0 && len(buf) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrAddressNotMapped, addr.ToString())
	}
	return n, nil
}

func (p *Platform) WriteMemory(h process.Handle, addr process.ProcessMemoryAddress, data []byte) (int, error) {
	p.mu.Lock()
	p.writes = append(p.writes, Transfer{Handle: h, Address: addr, Size: len(data)})
	p.mu.Unlock()

	img, err := p.handleImage(h)
	if err != nil {
		return 0, err
	}

	return img.write(addr, data), nil
}

// Reads returns a copy of the read log
func (p *Platform) Reads() []Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transfer(nil), p.reads...)
}

// Writes returns a copy of the write log
func (p *Platform) Writes() []Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transfer(nil), p.writes...)
}

// ResetLog clears the transfer logs
func (p *Platform) ResetLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = nil
	p.writes = nil
}

// OpenHandles returns the number of handles not yet closed
func (p *Platform) OpenHandles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// CloseCount returns how many times CloseHandle was called with h
func (p *Platform) CloseCount(h process.Handle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes[h]
}

func (p *Platform) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	img, ok := p.image(pid)
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}
	return &process.ProcessInfo{PID: img.PID, Name: img.Name}, nil
}

func (p *Platform) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	return p.find(func(img *ProcessImage) bool { return img.Name == name }), nil
}

func (p *Platform) FindAllProcesses() ([]process.ProcessInfo, error) {
	return p.find(func(*ProcessImage) bool { return true }), nil
}

func (p *Platform) find(match func(*ProcessImage) bool) []process.ProcessInfo {
	p.mu.Lock()
	var results []process.ProcessInfo
	for _, img := range p.images {
		if img.Alive() && match(img) {
			results = append(results, process.ProcessInfo{PID: img.PID, Name: img.Name})
		}
	}
	p.mu.Unlock()

	process.SortByPID(results)
	return results
}

func (p *Platform) MainModuleBase(pid process.ProcessID) (process.ProcessMemoryAddress, error) {
	img, ok := p.image(pid)
	if !ok {
		return 0, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}

	img.mu.Lock()
	defer img.mu.Unlock()
	if img.mainModule == "" {
		return 0, fmt.Errorf("process %d has no modules", pid)
	}
	return img.modules[img.mainModule], nil
}

func (p *Platform) ModuleBase(pid process.ProcessID, module string) (process.ProcessMemoryAddress, error) {
	img, ok := p.image(pid)
	if !ok {
		return 0, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}

	img.mu.Lock()
	defer img.mu.Unlock()
	base, ok := img.modules[strings.ToLower(module)]
	if !ok {
		return 0, fmt.Errorf("module %q not loaded in process %d", module, pid)
	}
	return base, nil
}

func (p *Platform) Terminate(pid process.ProcessID) error {
	img, ok := p.image(pid)
	if !ok {
		return nil
	}
	img.mu.Lock()
	if !img.stubborn {
		img.alive = false
	}
	img.mu.Unlock()
	return nil
}

func (p *Platform) Kill(pid process.ProcessID) error {
	img, ok := p.image(pid)
	if !ok {
		return nil
	}
	img.mu.Lock()
	img.alive = false
	img.mu.Unlock()
	return nil
}

// WaitExit does not sleep: an image changes state only through Terminate and Kill
func (p *Platform) WaitExit(pid process.ProcessID, timeout time.Duration) bool {
	_, alive := p.image(pid)
	return !alive
}
