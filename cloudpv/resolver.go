// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"context"
	"fmt"
	"strings"
)

// Resolver resolves a physical_volume's dev field to a local block device
// path, attaching cloud-backed storage first if needed. Manager.Activate
// treats a non-nil error the same way it treats a failed mapper probe:
// the whole operation aborts.
type Resolver interface {
	Resolve(ctx context.Context, dev string) (string, error)
}

// LocalResolver passes dev through unchanged. It is the default: a VG
// with no cloud_pv block works against purely local PVs with zero cloud
// configuration.
type LocalResolver struct{}

func (LocalResolver) Resolve(ctx context.Context, dev string) (string, error) { return dev, nil }

// AzureResolver resolves a PV whose dev names an Azure managed disk ARM
// resource ID (rather than a /dev/... path already present on this host)
// by attaching it to the current VM and waiting for the kernel device
// node.
type AzureResolver struct {
	Attacher *Attacher
}

func NewAzureResolver(attacher *Attacher) *AzureResolver {
	return &AzureResolver{Attacher: attacher}
}

// Resolve attaches dev (an ARM resource ID, recognized by its leading
// "/subscriptions/" per ARM convention) if it is not already a local path,
// and returns the resulting device node.
func (r *AzureResolver) Resolve(ctx context.Context, dev string) (string, error) {
	if !strings.HasPrefix(dev, "/subscriptions/") {
		return dev, nil
	}

	if _, _, _, err := ParseDiskResourceID(dev); err != nil {
		return "", fmt.Errorf("cloudpv: %s is not a well-formed managed disk ID: %w", dev, err)
	}

	lun, err := r.Attacher.AttachDisk(ctx, dev)
	if err != nil {
		return "", fmt.Errorf("cloudpv: attaching %s: %w", dev, err)
	}

	device, err := r.Attacher.WaitForDevice(ctx, lun)
	if err != nil {
		return "", fmt.Errorf("cloudpv: waiting for %s at lun %d: %w", dev, lun, err)
	}
	return device, nil
}
