// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build linux || freebsd

package mapper

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/hashicorp/go-dmplanner/internal/dmerr"
	"github.com/hashicorp/go-dmplanner/internal/dmlog"
)

var _ Mapper = &CLI{}

// defaultLockPath serializes mutating dmsetup invocations across
// concurrent planner processes, the same role /run/lock/lvm plays for
// real lvm2 tooling -- dmsetup itself performs no such locking, and two
// concurrent reload/suspend pairs against the same device can otherwise
// interleave.
const defaultLockPath = "/run/lock/dmplanner.lock"

// CLI drives the real kernel device-mapping facility via the dmsetup(8)
// command line tool, following the exec.Command/bytes.Buffer
// stdout-and-stderr capture idiom used to shell out to pvs/vgs/lvs/
// vgchange/dmsetup.
type CLI struct {
	// Directory overrides the mapper device directory (defaults to
	// /dev/mapper, or $DM_DIR if set).
	Directory string

	// LockPath overrides the exclusive-lock file mutating calls hold for
	// their duration. Empty selects defaultLockPath; a lock file that
	// cannot be opened or locked is logged and the call runs unlocked.
	LockPath string
}

func (c *CLI) lockPath() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return defaultLockPath
}

// withLock holds an exclusive flock(2) on c.lockPath() for the duration of
// fn, so Create/Reload/Suspend/Resume/Remove never interleave across
// processes. A missing lock directory is not fatal: locking is
// best-effort hardening, not a correctness requirement of this planner.
func (c *CLI) withLock(fn func() error) error {
	path := c.lockPath()
	if path == "" {
		return fn()
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0644)
	if err != nil {
		dmlog.Printf("mapper: could not open lock file %s: %v (continuing unlocked)", path, err)
		return fn()
	}
	defer unix.Close(fd)

	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		dmlog.Printf("mapper: could not lock %s: %v (continuing unlocked)", path, err)
		return fn()
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	return fn()
}

func (c *CLI) Dir() string {
	if c.Directory != "" {
		return c.Directory
	}
	if d := os.Getenv("DM_DIR"); d != "" {
		return d
	}
	return "/dev/mapper"
}

func (c *CLI) Run(task *Task) error {
	return c.withLock(func() error {
		args, err := buildArgs(task)
		if err != nil {
			return err
		}

		cmd := exec.Command("dmsetup", args...)
		var stdin bytes.Buffer
		if task.Type == Create || task.Type == Reload {
			for _, t := range task.Targets {
				fmt.Fprintf(&stdin, "%d %d %s %s\n", t.Start, t.Length, t.Type, t.Params)
			}
			cmd.Stdin = &stdin
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			dmlog.Printf("dmsetup %s: %v (stdout: %s, stderr: %s)",
				strings.Join(args, " "), err, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
			return fmt.Errorf("%w: dmsetup %s %s: %v (%s)", dmerr.ErrMapperFailure, task.Type, task.Name, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	})
}

func buildArgs(task *Task) ([]string, error) {
	switch task.Type {
	case Create:
		return []string{"create", task.Name}, nil
	case Reload:
		return []string{"reload", task.Name}, nil
	case Suspend:
		return []string{"suspend", task.Name}, nil
	case Resume:
		return []string{"resume", task.Name}, nil
	case Remove:
		return []string{"remove", task.Name}, nil
	default:
		return nil, fmt.Errorf("mapper: task type %s cannot be run directly, use GetInfo", task.Type)
	}
}

// GetInfo runs `dmsetup info -c --noheadings -o suspended,major,minor,open`
// for name, parsing the comma-separated single-line output the same way
// pvs/lvs column output gets parsed field-by-field.
func (c *CLI) GetInfo(name string) (DeviceInfo, error) {
	cmd := exec.Command("dmsetup", "info", "-c", "--noheadings", "-o", "suspended,major,minor,open",
		"--separator", ",", name)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// dmsetup info exits non-zero for a device that does not exist;
		// that is not a scan failure, it is DeviceInfo{Exists: false}.
		if strings.Contains(stderr.String(), "does not exist") {
			return DeviceInfo{Exists: false}, nil
		}
		return DeviceInfo{}, fmt.Errorf("%w: dmsetup info %s: %v (%s)", dmerr.ErrMapperFailure, name, err, strings.TrimSpace(stderr.String()))
	}

	line := strings.TrimSpace(stdout.String())
	if line == "" {
		return DeviceInfo{Exists: false}, nil
	}
	parts := strings.SplitN(line, ",", 4)
	if len(parts) != 4 {
		return DeviceInfo{}, fmt.Errorf("%w: dmsetup info %s: unexpected output %q", dmerr.ErrMapperFailure, name, line)
	}

	suspended := strings.TrimSpace(parts[0]) == "Suspended"
	major, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	minor, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
	open, _ := strconv.Atoi(strings.TrimSpace(parts[3]))

	return DeviceInfo{
		Exists:    true,
		Suspended: suspended,
		Major:     uint32(major),
		Minor:     uint32(minor),
		OpenCount: open,
	}, nil
}

// List returns the names of every device node in the mapper directory,
// ignoring dotfiles.
func (c *CLI) List() ([]string, error) {
	entries, err := os.ReadDir(c.Dir())
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", dmerr.ErrScanFailure, c.Dir(), err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
