package sysinfo

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a coarse view of the host, injected into model context
// so the assistant can mention battery-style concerns like low disk.
type Snapshot struct {
	Hostname    string
	Uptime      time.Duration
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
}

func Collect() Snapshot {
	var s Snapshot

	if info, err := host.Info(); err == nil {
		s.Hostname = info.Hostname
		s.Uptime = time.Duration(info.Uptime) * time.Second
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		s.DiskPercent = du.UsedPercent
	}
	return s
}

// FormatForPrompt renders the snapshot as a short context block.
func (s Snapshot) FormatForPrompt() string {
	var b strings.Builder
	b.WriteString("## System\n")
	if s.Hostname != "" {
		fmt.Fprintf(&b, "- host: %s (up %s)\n", s.Hostname, s.Uptime.Round(time.Minute))
	}
	fmt.Fprintf(&b, "- cpu: %.0f%%, mem: %.0f%%, disk: %.0f%%\n", s.CPUPercent, s.MemPercent, s.DiskPercent)
	return b.String()
}
