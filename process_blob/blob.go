package process_blob

import (
	"memtunnel/process"
)

// ProcessBlob is one mapped region of a ProcessImage: a base address and its bytes
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
	writable    bool
}

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte, writable bool) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
		writable:    writable,
	}
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) End() process.ProcessMemoryAddress {
	return p.baseaddress + process.ProcessMemoryAddress(len(p.data))
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) Writable() bool {
	return p.writable
}

// Contains reports whether addr falls inside the region
func (p *ProcessBlob) Contains(addr process.ProcessMemoryAddress) bool {
	return addr >= p.baseaddress && addr < p.End()
}

// readAt copies from addr up to the end of the region and returns the count
func (p *ProcessBlob) readAt(addr process.ProcessMemoryAddress, buf []byte) int {
	if !p.Contains(addr) {
		return 0
	}
	offset := addr - p.baseaddress
	return copy(buf, p.data[offset:])
}

// writeAt copies to addr up to the end of the region and returns the count
func (p *ProcessBlob) writeAt(addr process.ProcessMemoryAddress, data []byte) int {
	if !p.Contains(addr) || !p.writable {
		return 0
	}
	offset := addr - p.baseaddress
	return copy(p.data[offset:], data)
}
