// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"context"
	"errors"
	"strings"
	"time"

	hashiVMSDK "github.com/hashicorp/go-azure-sdk/resource-manager/compute/2022-03-01/virtualmachines"

	"github.com/hashicorp/go-dmplanner/internal/dmlog"
)

// VMClientSet is the slice of client.AzureClientSet this package consumes:
// enough to look up the current VM and mutate its data-disk list. Kept as
// a narrow interface, the same way dmexec.TableBuilder/Publisher narrow
// their collaborators, so cloudpv does not pull in the whole Azure client
// surface (image/gallery clients) it never touches.
type VMClientSet interface {
	SubscriptionID() string
	ThisVM(ctx context.Context) (hashiVMSDK.VirtualMachine, error)
	UpdateVM(ctx context.Context, vm hashiVMSDK.VirtualMachine) error
}

// Attacher attaches and detaches Azure managed disks to the current VM,
// adapted from diskattacher.go's diskAttacher -- the LUN bookkeeping there
// is lifted nearly verbatim since a cloud PV's attach/detach life cycle is
// identical regardless of what ends up consuming the resulting device.
type Attacher struct {
	azcli VMClientSet
	disks Diskset
}

func NewAttacher(azcli VMClientSet) *Attacher {
	return &Attacher{azcli: azcli, disks: Diskset{}}
}

var ErrDiskNotFound = errors.New("cloudpv: disk not found")

// AttachDisk attaches diskID to the current VM at the first free LUN
// (0-63, the same linear scan a findFreeLun helper would run) and returns
// that LUN. Attaching an already-attached disk is a no-op that returns
// its existing LUN.
func (a *Attacher) AttachDisk(ctx context.Context, diskID string) (int64, error) {
	if lun, ok := a.disks.Lun(diskID); ok {
		return lun, nil
	}

	vm, err := a.azcli.ThisVM(ctx)
	if err != nil {
		return -1, err
	}
	dataDisks := existingDataDisks(vm)

	if disk := findDiskInList(dataDisks, diskID); disk != nil {
		a.disks.Put(disk.Lun, diskID)
		return disk.Lun, nil
	}

	var lun int64 = -1
findFreeLun:
	for lun = 0; lun < 64; lun++ {
		for _, d := range dataDisks {
			if d.Lun == lun {
				continue findFreeLun
			}
		}
		break
	}

	dataDisks = append(dataDisks, hashiVMSDK.DataDisk{
		CreateOption: hashiVMSDK.DiskCreateOptionTypesAttach,
		ManagedDisk:  &hashiVMSDK.ManagedDiskParameters{Id: &diskID},
		Lun:          lun,
	})

	if vm.Properties.StorageProfile == nil {
		return -1, errors.New("cloudpv: properties.storageProfile is not set on VM, this is unexpected")
	}
	vm.Properties.StorageProfile.DataDisks = &dataDisks

	dmlog.Printf("attaching disk %s at lun %d", diskID, lun)
	if err := a.azcli.UpdateVM(ctx, vm); err != nil {
		return -1, err
	}

	a.disks.Put(lun, diskID)
	return lun, nil
}

// DetachDisk removes diskID from the current VM's data-disk list.
func (a *Attacher) DetachDisk(ctx context.Context, diskID string) error {
	vm, err := a.azcli.ThisVM(ctx)
	if err != nil {
		return err
	}
	current := existingDataDisks(vm)

	var kept []hashiVMSDK.DataDisk
	for _, d := range current {
		if d.ManagedDisk == nil || d.ManagedDisk.Id == nil {
			return errors.New("cloudpv: azure API returned a disk without an ID")
		}
		if !strings.EqualFold(*d.ManagedDisk.Id, diskID) {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(current) {
		return ErrDiskNotFound
	}

	if vm.Properties.StorageProfile == nil {
		return errors.New("cloudpv: properties.storageProfile is not set on VM, this is unexpected")
	}
	vm.Properties.StorageProfile.DataDisks = &kept

	dmlog.Printf("detaching disk %s", diskID)
	if err := a.azcli.UpdateVM(ctx, vm); err != nil {
		return err
	}

	a.disks.Delete(diskID)
	return nil
}

// WaitForDetach polls until diskID no longer appears in the VM's data-disk
// list, or ctx is done.
func (a *Attacher) WaitForDetach(ctx context.Context, diskID string) error {
	for {
		vm, err := a.azcli.ThisVM(ctx)
		if err != nil {
			return err
		}
		if findDiskInList(existingDataDisks(vm), diskID) == nil {
			return nil
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func existingDataDisks(vm hashiVMSDK.VirtualMachine) []hashiVMSDK.DataDisk {
	if vm.Properties == nil || vm.Properties.StorageProfile == nil || vm.Properties.StorageProfile.DataDisks == nil {
		return nil
	}
	return *vm.Properties.StorageProfile.DataDisks
}

func findDiskInList(list []hashiVMSDK.DataDisk, diskID string) *hashiVMSDK.DataDisk {
	for i, d := range list {
		if d.ManagedDisk != nil && d.ManagedDisk.Id != nil && strings.EqualFold(*d.ManagedDisk.Id, diskID) {
			return &list[i]
		}
	}
	return nil
}
