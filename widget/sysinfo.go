package widget

import (
	"fmt"

	"github.com/wuliuqii/mgs/pkg/sysinfo"
)

// CPULabel renders average CPU use.
func CPULabel(d sysinfo.Data) string {
	return fmt.Sprintf("CPU: %.1f%%", d.CPU)
}

// MemoryLabel renders memory use.
func MemoryLabel(d sysinfo.Data) string {
	return fmt.Sprintf("MEM: %.1f%%", d.MemoryPercent)
}

// SysInfo shows CPU and memory load.
type SysInfo struct {
	base
	cpu string
	mem string
}

// NewSysInfo creates a SysInfo widget.
func NewSysInfo(inv Invalidator) *SysInfo {
	return &SysInfo{base: newBase(inv)}
}

// Name implements Widget.
func (s *SysInfo) Name() string { return "sysinfo" }

// Apply implements the snapshot update.
func (s *SysInfo) Apply(d sysinfo.Data) {
	s.update(func() {
		s.cpu = CPULabel(d)
		s.mem = MemoryLabel(d)
	})
}

// View implements Widget.
func (s *SysInfo) View() []Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []Block{
		{Name: s.Name(), Instance: "cpu", Text: s.cpu},
		{Name: s.Name(), Instance: "mem", Text: s.mem},
	}
}

var (
	_ Widget  = (*Battery)(nil)
	_ Widget  = (*Network)(nil)
	_ Widget  = (*Volume)(nil)
	_ Widget  = (*Workspaces)(nil)
	_ Widget  = (*Clock)(nil)
	_ Widget  = (*SysInfo)(nil)
	_ Clicker = (*Volume)(nil)
	_ Clicker = (*Workspaces)(nil)
)
