package shellsession

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// resourceMonitor polls /proc for a running command's CPU% and RSS,
// enforcing Config.CPUPercentLimit / MemoryMBLimit. No ecosystem process
// metrics library is in the dependency pack for this concern — grounded
// directly on /proc the way the shell command executor would be run on
// the deployment target (Linux containers); see DESIGN.md for why this
// stays stdlib.
type resourceMonitor struct {
	pid        int
	cfg        Config
	lastCPU    time.Time
	lastTicks  uint64
	clockHz    float64
}

func newResourceMonitor(pid int, cfg Config) *resourceMonitor {
	return &resourceMonitor{pid: pid, cfg: cfg, lastCPU: time.Now(), clockHz: 100}
}

func (m *resourceMonitor) overLimit() bool {
	if m.cfg.MemoryMBLimit > 0 {
		if rss, err := readRSSBytes(m.pid); err == nil {
			if rss > m.cfg.MemoryMBLimit*1024*1024 {
				return true
			}
		}
	}
	if m.cfg.CPUPercentLimit > 0 {
		if pct, ok := m.sampleCPUPercent(); ok && pct > m.cfg.CPUPercentLimit {
			return true
		}
	}
	return false
}

func readRSSBytes(pid int) (int64, error) {
	f, err := os.Open("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					return 0, err
				}
				return kb * 1024, nil
			}
		}
	}
	return 0, scanner.Err()
}

func (m *resourceMonitor) sampleCPUPercent() (float64, bool) {
	ticks, err := readUtimeStimeTicks(m.pid)
	if err != nil {
		return 0, false
	}
	now := time.Now()
	elapsed := now.Sub(m.lastCPU).Seconds()
	defer func() {
		m.lastCPU = now
		m.lastTicks = ticks
	}()
	if m.lastTicks == 0 || elapsed <= 0 {
		return 0, false
	}
	deltaTicks := float64(ticks - m.lastTicks)
	deltaSeconds := deltaTicks / m.clockHz
	return (deltaSeconds / elapsed) * 100, true
}

func readUtimeStimeTicks(pid int) (uint64, error) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0, err
	}
	// Fields after the executable name (which may contain spaces/parens)
	// start at the last ')'.
	s := string(data)
	idx := strings.LastIndexByte(s, ')')
	if idx < 0 {
		return 0, os.ErrInvalid
	}
	fields := strings.Fields(s[idx+1:])
	// utime is field 14 overall -> index 11 here (0-based after state
	// which is fields[0]), stime is field 15 -> index 12.
	if len(fields) < 13 {
		return 0, os.ErrInvalid
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, err
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, err
	}
	return utime + stime, nil
}
