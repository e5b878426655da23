//go:build windows

package process_windows

import (
	"fmt"
	"strings"

	"memtunnel/process"

	"golang.org/x/sys/windows"
)

// FindProcessByPID finds a process by its PID
func (p *WindowsPlatform) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	list, err := p.snapshotProcesses(func(info *process.ProcessInfo) bool {
		return info.PID == pid
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}
	return &list[0], nil
}

// FindProcessByName matches the image name case-insensitively, with or without ".exe"
func (p *WindowsPlatform) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("empty process name")
	}
	return p.snapshotProcesses(func(info *process.ProcessInfo) bool {
		return strings.EqualFold(info.Name, name) ||
			strings.EqualFold(strings.TrimSuffix(strings.ToLower(info.Name), ".exe"), name)
	})
}

// FindAllProcesses returns information about all running processes
func (p *WindowsPlatform) FindAllProcesses() ([]process.ProcessInfo, error) {
	return p.snapshotProcesses(func(*process.ProcessInfo) bool { return true })
}

func (p *WindowsPlatform) snapshotProcesses(match func(*process.ProcessInfo) bool) ([]process.ProcessInfo, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = sizeOf[windows.ProcessEntry32]()

	var results []process.ProcessInfo
	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		info := process.ProcessInfo{
			PID:  process.ProcessID(entry.ProcessID),
			PPID: process.ProcessID(entry.ParentProcessID),
			Name: windows.UTF16ToString(entry.ExeFile[:]),
		}
		if match(&info) {
			results = append(results, info)
		}
	}

	process.SortByPID(results)

	return results, nil
}

// MainModuleBase returns the base of the first module in the snapshot, which is the executable
func (p *WindowsPlatform) MainModuleBase(pid process.ProcessID) (process.ProcessMemoryAddress, error) {
	return p.moduleBase(pid, "")
}

// ModuleBase returns the base of the named module, e.g. "kernel32.dll"
func (p *WindowsPlatform) ModuleBase(pid process.ProcessID, module string) (process.ProcessMemoryAddress, error) {
	if module == "" {
		return 0, fmt.Errorf("empty module name")
	}
	return p.moduleBase(pid, module)
}

func (p *WindowsPlatform) moduleBase(pid process.ProcessID, module string) (process.ProcessMemoryAddress, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return 0, fmt.Errorf("CreateToolhelp32Snapshot(%d) failed: %w", pid, err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ModuleEntry32
	entry.Size = sizeOf[windows.ModuleEntry32]()

	for err = windows.Module32First(snapshot, &entry); err == nil; err = windows.Module32Next(snapshot, &entry) {
		if module == "" || strings.EqualFold(windows.UTF16ToString(entry.Module[:]), module) {
			return process.ProcessMemoryAddress(entry.ModBaseAddr), nil
		}
	}

	if module == "" {
		return 0, fmt.Errorf("process %d has no modules: %w", pid, err)
	}
	return 0, fmt.Errorf("module %q not loaded in process %d", module, pid)
}
