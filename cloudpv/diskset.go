// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cloudpv resolves a physical_volume's dev field to a local block
// device path when it names an Azure managed disk rather than a path
// already present on this host, extending the metadata layer with a
// cloud-backed PV resolution path. Snapshot resource IDs are not accepted.
package cloudpv

// Diskset tracks which LUN each cloud PV this planner attached currently
// occupies on the VM, keyed the same way a build's disk set keys its OS
// disk -- generalized here from "the one OS disk plus N data disks of a
// single build" to "every cloud-backed PV a VG's activation may need".
type Diskset map[int64]string

// Lun returns the LUN diskID occupies, or false if it is not tracked.
func (ds Diskset) Lun(diskID string) (int64, bool) {
	for lun, id := range ds {
		if id == diskID {
			return lun, true
		}
	}
	return 0, false
}

// Put records diskID as occupying lun.
func (ds Diskset) Put(lun int64, diskID string) {
	ds[lun] = diskID
}

// Delete forgets diskID's LUN assignment, if any.
func (ds Diskset) Delete(diskID string) {
	for lun, id := range ds {
		if id == diskID {
			delete(ds, lun)
			return
		}
	}
}
