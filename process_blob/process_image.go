package process_blob

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"memtunnel/process"
)

// ProcessImage is a simulated process: a PID, a name and a set of mapped regions
type ProcessImage struct {
	PID  process.ProcessID
	Name string

	mu         sync.Mutex
	regions    []*ProcessBlob
	modules    map[string]process.ProcessMemoryAddress
	mainModule string
	alive      bool
	stubborn   bool
	denied     bool
}

// Map adds a zero-filled region of size bytes at addr and returns it
func (pi *ProcessImage) Map(addr process.ProcessMemoryAddress, size int, writable bool) *ProcessBlob {
	return pi.MapData(addr, make([]byte, size), writable)
}

// MapData adds a region backed by data. Regions must not overlap.
func (pi *ProcessImage) MapData(addr process.ProcessMemoryAddress, data []byte, writable bool) *ProcessBlob {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	blob := NewProcessBlob(addr, data, writable)
	for _, r := range pi.regions {
		if blob.Base() < r.End() && r.Base() < blob.End() {
			panic(fmt.Sprintf("region %s overlaps %s", blob.Base().ToString(), r.Base().ToString()))
		}
	}
	pi.regions = append(pi.regions, blob)
	sort.Slice(pi.regions, func(i, j int) bool {
		return pi.regions[i].Base() < pi.regions[j].Base()
	})
	return blob
}

// AddModule records a module load address. The first module added is the main module.
func (pi *ProcessImage) AddModule(name string, base process.ProcessMemoryAddress) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.mainModule == "" {
		pi.mainModule = strings.ToLower(name)
	}
	pi.modules[strings.ToLower(name)] = base
}

// Poke writes data without going through a handle, ignoring region protection
func (pi *ProcessImage) Poke(addr process.ProcessMemoryAddress, data []byte) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	for done := 0; done < len(data); {
		r := pi.regionAt(addr + process.ProcessMemoryAddress(done))
		if r == nil {
			panic(fmt.Sprintf("poke at unmapped address %s", (addr + process.ProcessMemoryAddress(done)).ToString()))
		}
		offset := addr + process.ProcessMemoryAddress(done) - r.Base()
		done += copy(r.Data()[offset:], data[done:])
	}
}

// Peek returns a copy of n bytes at addr without going through a handle
func (pi *ProcessImage) Peek(addr process.ProcessMemoryAddress, n int) []byte {
	buf := make([]byte, n)
	if got := pi.read(addr, buf); got != n {
		panic(fmt.Sprintf("peek at %s: only %d of %d bytes mapped", addr.ToString(), got, n))
	}
	return buf
}

// SetStubborn makes the process ignore Terminate; only Kill ends it
func (pi *ProcessImage) SetStubborn(stubborn bool) {
	pi.mu.Lock()
	pi.stubborn = stubborn
	pi.mu.Unlock()
}

// SetDenied makes OpenProcess fail as if the caller lacked privilege
func (pi *ProcessImage) SetDenied(denied bool) {
	pi.mu.Lock()
	pi.denied = denied
	pi.mu.Unlock()
}

// Alive reports whether the process has not been terminated or killed
func (pi *ProcessImage) Alive() bool {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.alive
}

func (pi *ProcessImage) regionAt(addr process.ProcessMemoryAddress) *ProcessBlob {
	i := sort.Search(len(pi.regions), func(i int) bool {
		return pi.regions[i].End() > addr
	})
	if i < len(pi.regions) && pi.regions[i].Contains(addr) {
		return pi.regions[i]
	}
	return nil
}

// read copies across adjacent regions and stops at the first gap
func (pi *ProcessImage) read(addr process.ProcessMemoryAddress, buf []byte) int {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	done := 0
	for done < len(buf) {
		r := pi.regionAt(addr + process.ProcessMemoryAddress(done))
		if r == nil {
			break
		}
		done += r.readAt(addr+process.ProcessMemoryAddress(done), buf[done:])
	}
	return done
}

// write copies across adjacent writable regions and stops at the first gap or read-only region
func (pi *ProcessImage) write(addr process.ProcessMemoryAddress, data []byte) int {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	done := 0
	for done < len(data) {
		r := pi.regionAt(addr + process.ProcessMemoryAddress(done))
		if r == nil || !r.Writable() {
			break
		}
		done += r.writeAt(addr+process.ProcessMemoryAddress(done), data[done:])
	}
	return done
}
