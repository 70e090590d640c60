// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build linux || freebsd

package cloudpv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lunDevicePath is the stable udev symlink the Azure Linux guest agent
// creates for each attached data disk's SCSI LUN.
func lunDevicePath(lun int64) string {
	return fmt.Sprintf("/dev/disk/azure/scsi1/lun%d", lun)
}

// WaitForDevice polls for the udev symlink at lun to appear and resolves
// it to the underlying /dev/sdX node, or returns ctx.Err() on timeout.
func (a *Attacher) WaitForDevice(ctx context.Context, lun int64) (string, error) {
	path := lunDevicePath(lun)
	for {
		if target, err := filepath.EvalSymlinks(path); err == nil {
			return target, nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("cloudpv: resolving %s: %w", path, err)
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
