// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package mapper wraps the capability set the planner consumes from the
// kernel device-mapping facility: task construction, target addition,
// synchronous run, and info query. CLI is the default implementation,
// shelling out to the dmsetup(8) userspace tool the same way a volume
// manager shells out to pvs/vgs/lvs.
package mapper

import "fmt"

// TaskType selects one of the five mutating operations or the read-only
// info query.
type TaskType int

const (
	Create TaskType = iota
	Reload
	Suspend
	Resume
	Remove
	Info
)

func (t TaskType) String() string {
	switch t {
	case Create:
		return "create"
	case Reload:
		return "reload"
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	case Remove:
		return "remove"
	case Info:
		return "info"
	default:
		return fmt.Sprintf("TaskType(%d)", int(t))
	}
}

// Target is one line of a mapper table: a sector range covered by a target
// type and its kernel-parsed parameter string.
type Target struct {
	Start  uint64 // sectors
	Length uint64 // sectors
	Type   string // "linear", "striped", "error", "snapshot", "snapshot-origin"
	Params string
}

// DeviceInfo is the observed state of one mapper device.
type DeviceInfo struct {
	Exists    bool
	Suspended bool
	Major     uint32
	Minor     uint32
	OpenCount int
}

// Task is a single mapper operation under construction: a name, a task
// type, and (for Create/Reload) an ordered list of targets.
type Task struct {
	Type    TaskType
	Name    string
	Targets []Target
}

// NewTask constructs a task of the given type for the named device.
func NewTask(t TaskType, name string) *Task {
	return &Task{Type: t, Name: name}
}

// AddTarget appends one target row to the task. Only meaningful for
// Create and Reload tasks.
func (t *Task) AddTarget(target Target) {
	t.Targets = append(t.Targets, target)
}

// Mapper is the interface the planner drives the kernel device-mapping
// facility through. Run executes a mutating task (Create/Reload/Suspend/
// Resume/Remove) and returns an error on failure. GetInfo performs the
// read-only Info query for name, returning a DeviceInfo with Exists=false
// (not an error) if the device does not exist. Dir returns the mapper
// device directory, used both for scanning existing devices and for
// formatting "<dm_dir>/<name>" target parameters.
type Mapper interface {
	Run(task *Task) error
	GetInfo(name string) (DeviceInfo, error)
	Dir() string
}

// Directory scans the mapper device directory for existing device node
// names.
type Directory interface {
	List() ([]string, error)
}
