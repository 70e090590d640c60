// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package mapper

import "fmt"

var _ Mapper = &Mock{}
var _ Directory = &Mock{}

// Call records one invocation against a Mock, in the order it occurred.
type Call struct {
	Type TaskType
	Name string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Type, c.Name)
}

// Mock is a Mapper/Directory implementation that records every call it
// receives, for use in end-to-end scenario tests -- a hand-written mock
// satisfying the production interface, the way AzureClientSetMock
// satisfies AzureClientSet, extended here with an ordered Calls log since
// what these tests care about is call ordering, not just call presence.
type Mock struct {
	DirPath string

	// Devices is the pre-populated/observed state, keyed by device name.
	Devices map[string]DeviceInfo

	// Entries lists the device names List() should return (e.g. to seed
	// a reconciler scan); defaults to the keys of Devices if nil.
	Entries []string

	Calls []Call

	// FailOn, if set, makes Run return an error for a task on this device
	// name, to test failure-path propagation.
	FailOn map[string]bool
}

func NewMock() *Mock {
	return &Mock{
		DirPath: "/dev/mapper",
		Devices: map[string]DeviceInfo{},
	}
}

func (m *Mock) Dir() string {
	if m.DirPath == "" {
		return "/dev/mapper"
	}
	return m.DirPath
}

func (m *Mock) List() ([]string, error) {
	if m.Entries != nil {
		return m.Entries, nil
	}
	var names []string
	for name := range m.Devices {
		names = append(names, name)
	}
	return names, nil
}

func (m *Mock) GetInfo(name string) (DeviceInfo, error) {
	info, ok := m.Devices[name]
	if !ok {
		return DeviceInfo{Exists: false}, nil
	}
	return info, nil
}

func (m *Mock) Run(task *Task) error {
	m.Calls = append(m.Calls, Call{Type: task.Type, Name: task.Name})

	if m.FailOn[task.Name] {
		return fmt.Errorf("mock: forced failure on %s", task.Name)
	}

	info := m.Devices[task.Name]
	switch task.Type {
	case Create:
		info.Exists = true
		info.Suspended = false
	case Reload:
		// table replaced; suspended state unchanged
	case Suspend:
		info.Suspended = true
	case Resume:
		info.Suspended = false
	case Remove:
		delete(m.Devices, task.Name)
		return nil
	}
	m.Devices[task.Name] = info
	return nil
}
