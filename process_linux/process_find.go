//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memtunnel/process"
)

// commLength is the kernel's TASK_COMM_LEN minus the terminator; /proc/<pid>/comm
// holds at most this many bytes of the name.
const commLength = 15

// FindProcessByPID finds a process by its PID
func (p *LinuxPlatform) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	if !procExists(int(pid)) {
		return nil, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}

	return getProcessInfo(pid)
}

// FindProcessByName finds processes whose comm or executable basename equals name (case-sensitive, like pidof)
func (p *LinuxPlatform) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty process name")
	}

	comm := name
	if len(comm) > commLength {
		comm = comm[:commLength]
	}

	return findProcesses(func(info *process.ProcessInfo) bool {
		if info.Exe != "" && filepath.Base(info.Exe) == name {
			return true
		}
		return info.Name == comm
	})
}

// FindAllProcesses returns information about all running processes
func (p *LinuxPlatform) FindAllProcesses() ([]process.ProcessInfo, error) {
	return findProcesses(func(*process.ProcessInfo) bool { return true })
}

func findProcesses(match func(*process.ProcessInfo) bool) ([]process.ProcessInfo, error) {
	// List all directories in /proc that are numbers (PIDs)
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc: %w", err)
	}

	var results []process.ProcessInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue // not a PID dir
		}

		info, err := getProcessInfo(process.ProcessID(pid))
		if err != nil {
			// Process may have terminated while we were reading
			continue
		}

		if match(info) {
			results = append(results, *info)
		}
	}

	process.SortByPID(results)

	return results, nil
}

// Helper function to get process information
func getProcessInfo(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := filepath.Join("/proc", strconv.Itoa(int(pid)))

	nameBytes, err := os.ReadFile(filepath.Join(procPath, "comm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}

	// Some processes don't have an exe (kernel threads) or hide it from us
	exe, _ := os.Readlink(filepath.Join(procPath, "exe"))

	info := &process.ProcessInfo{
		PID:  pid,
		Name: strings.TrimRight(string(nameBytes), "\n"),
		Exe:  exe,
	}

	if stat, err := readStat(int(pid)); err == nil {
		info.PPID = process.ProcessID(stat.ppid)
	}

	return info, nil
}

type procStat struct {
	state     byte
	ppid      int
	startTime uint64
}

// readStat parses the fields of /proc/<pid>/stat we need. The command name is skipped by
// searching for the last ')' since it may itself contain spaces and parentheses.
func readStat(pid int) (procStat, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return procStat{}, err
	}

	end := strings.LastIndexByte(string(data), ')')
	if end < 0 || end+2 >= len(data) {
		return procStat{}, fmt.Errorf("malformed stat for pid %d", pid)
	}

	// fields[0] is field 3 (state) of proc(5)
	fields := strings.Fields(string(data[end+2:]))
	if len(fields) < 20 {
		return procStat{}, fmt.Errorf("short stat for pid %d", pid)
	}

	var st procStat
	st.state = fields[0][0]
	st.ppid, _ = strconv.Atoi(fields[1])
	st.startTime, _ = strconv.ParseUint(fields[19], 10, 64)

	return st, nil
}

func procExists(pid int) bool {
	st, err := readStat(pid)
	if err == nil {
		// zombies and dead tasks have no memory left to attach to
		return st.state != 'Z' && st.state != 'X'
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	_, err = os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return err == nil
}
