// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package dmplanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/go-dmplanner/internal/fsnode"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
)

// fakeCloudResolver rewrites any dev string found in its map, the way a
// real cloudpv.AzureResolver rewrites an ARM disk ID into the udev path it
// attached, and counts how many times it was asked to resolve each one.
type fakeCloudResolver struct {
	rewrite map[string]string
	calls   map[string]int
}

func (f *fakeCloudResolver) Resolve(ctx context.Context, dev string) (string, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[dev]++
	if local, ok := f.rewrite[dev]; ok {
		return local, nil
	}
	return dev, nil
}

func pv(name string, peStart uint64) *metadata.PhysicalVolume {
	return &metadata.PhysicalVolume{Dev: metadata.Device{Name: name}, PEStart: peStart}
}

// S1: a single linear LV activates with one Create call and no dependency
// churn.
func TestActivateLinearLVS1(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 384)
	lv := &metadata.LogicalVolume{Name: "lvol0", VG: vg, Size: 819200, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 100, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	vg.LVs = []*metadata.LogicalVolume{lv}

	m := mapper.NewMock()
	mgr := New(vg, m, m, nil)

	require.NoError(t, mgr.Activate(context.Background(), "lvol0"))

	require.Len(t, m.Calls, 1)
	assert.Equal(t, mapper.Call{Type: mapper.Create, Name: "vg0-lvol0"}, m.Calls[0])
	assert.True(t, mgr.IsActive("lvol0"))
}

// S3: activating a snapshot creates the cow and origin-real layers before
// the snapshot's own top layer.
func TestActivateSnapshotS3(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 0)
	orig := &metadata.LogicalVolume{Name: "orig", VG: vg, Size: 1000, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	cow := &metadata.LogicalVolume{Name: "snap_cow", VG: vg, Size: 200, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 10}}},
	}}
	snap := &metadata.LogicalVolume{Name: "snap", VG: vg}
	snap.SetSnapshot(&metadata.Snapshot{Origin: orig, Cow: cow, ChunkSize: 16})
	vg.LVs = []*metadata.LogicalVolume{orig, cow, snap}

	m := mapper.NewMock()
	mgr := New(vg, m, m, nil)

	require.NoError(t, mgr.Activate(context.Background(), "snap"))

	var creates []string
	for _, c := range m.Calls {
		if c.Type == mapper.Create {
			creates = append(creates, c.Name)
		}
	}
	assert.Equal(t, []string{"vg0-snap-cow", "vg0-orig-real", "vg0-snap"}, creates)
}

// S4: activating an origin LV with no active snapshot produces a single
// plain device -- no "-real" indirection.
func TestActivateOriginWithoutActiveSnapshotS4(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 0)
	orig := &metadata.LogicalVolume{Name: "orig", VG: vg, Size: 1000, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	cow := &metadata.LogicalVolume{Name: "snap_cow", VG: vg}
	snap := &metadata.LogicalVolume{Name: "snap", VG: vg}
	snap.SetSnapshot(&metadata.Snapshot{Origin: orig, Cow: cow, ChunkSize: 16})
	vg.LVs = []*metadata.LogicalVolume{orig, cow, snap}

	m := mapper.NewMock()
	mgr := New(vg, m, m, nil)

	require.NoError(t, mgr.Activate(context.Background(), "orig"))

	require.Len(t, m.Calls, 1)
	assert.Equal(t, "vg0-orig", m.Calls[0].Name)
}

// A snapshot activated by one Manager must still be seen as active by a
// second, freshly-constructed Manager over the same mapper state -- the
// real-world shape of dmplan's CLI, which builds a new Manager per
// invocation. Activating the origin afterward from that fresh Manager
// must still add the "-real" indirection rather than treating the
// snapshot as inactive because this process never activated it itself.
func TestActivateOriginSeesSnapshotActivatedByAnotherManager(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 0)
	orig := &metadata.LogicalVolume{Name: "orig", VG: vg, Size: 1000, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	cow := &metadata.LogicalVolume{Name: "snap_cow", VG: vg, Size: 200, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 10}}},
	}}
	snap := &metadata.LogicalVolume{Name: "snap", VG: vg}
	snap.SetSnapshot(&metadata.Snapshot{Origin: orig, Cow: cow, ChunkSize: 16})
	vg.LVs = []*metadata.LogicalVolume{orig, cow, snap}

	m := mapper.NewMock()

	first := New(vg, m, m, nil)
	require.NoError(t, first.Activate(context.Background(), "snap"))

	second := New(vg, m, m, nil)
	require.True(t, second.IsActive("snap"))

	require.NoError(t, second.Activate(context.Background(), "orig"))

	var creates []string
	for _, c := range m.Calls {
		if c.Type == mapper.Create {
			creates = append(creates, c.Name)
		}
	}
	// vg0-orig-real already exists from activating snap, so activating
	// orig only needs to reload it and create the vg0-orig top layer --
	// never a bare "vg0-orig" created with no dependency, which is what
	// the vanilla (non-origin) expansion would have produced.
	assert.Contains(t, creates, "vg0-orig")
	assert.NotContains(t, creates, "vg0-orig-real")

	var reloads []string
	for _, c := range m.Calls {
		if c.Type == mapper.Reload {
			reloads = append(reloads, c.Name)
		}
	}
	assert.Contains(t, reloads, "vg0-orig-real")
}

// S5: a second activate against an already-active LV reloads rather than
// creates.
func TestActivateTwiceReloads(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 0)
	lv := &metadata.LogicalVolume{Name: "lvol0", VG: vg, Size: 8192, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	vg.LVs = []*metadata.LogicalVolume{lv}

	m := mapper.NewMock()
	mgr := New(vg, m, m, nil)

	require.NoError(t, mgr.Activate(context.Background(), "lvol0"))
	require.NoError(t, mgr.Activate(context.Background(), "lvol0"))

	var types []mapper.TaskType
	for _, c := range m.Calls {
		types = append(types, c.Type)
	}
	assert.Equal(t, []mapper.TaskType{mapper.Create, mapper.Suspend, mapper.Reload, mapper.Resume}, types)
}

func TestDeactivateRemovesTopDown(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 0)
	orig := &metadata.LogicalVolume{Name: "orig", VG: vg, Size: 1000, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	cow := &metadata.LogicalVolume{Name: "snap_cow", VG: vg, Size: 200, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 10}}},
	}}
	snap := &metadata.LogicalVolume{Name: "snap", VG: vg}
	snap.SetSnapshot(&metadata.Snapshot{Origin: orig, Cow: cow, ChunkSize: 16})
	vg.LVs = []*metadata.LogicalVolume{orig, cow, snap}

	m := mapper.NewMock()
	mgr := New(vg, m, m, nil)
	require.NoError(t, mgr.Activate(context.Background(), "snap"))
	m.Calls = nil

	require.NoError(t, mgr.Deactivate(context.Background(), "snap"))
	assert.False(t, mgr.IsActive("snap"))

	var removes []string
	for _, c := range m.Calls {
		if c.Type == mapper.Remove {
			removes = append(removes, c.Name)
		}
	}
	assert.Equal(t, []string{"vg0-snap", "vg0-snap-cow", "vg0-orig-real"}, removes)
}

func TestActivateUnknownLVFails(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0"}
	m := mapper.NewMock()
	mgr := New(vg, m, m, nil)

	err := mgr.Activate(context.Background(), "ghost")
	require.Error(t, err)
}

func TestActivateResolvesCloudBackedPVOnce(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	cloudDiskID := "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.Compute/disks/disk0"
	sda := pv(cloudDiskID, 0)
	lv := &metadata.LogicalVolume{Name: "lvol0", VG: vg, Size: 8192, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	vg.LVs = []*metadata.LogicalVolume{lv}
	vg.PVs = []*metadata.PhysicalVolume{sda}

	m := mapper.NewMock()
	resolver := &fakeCloudResolver{rewrite: map[string]string{cloudDiskID: "/dev/sdz"}}
	mgr := NewWithResolver(vg, m, m, nil, resolver)

	require.NoError(t, mgr.Activate(context.Background(), "lvol0"))
	assert.Equal(t, "/dev/sdz", sda.Dev.Name)
	assert.Equal(t, 1, resolver.calls[cloudDiskID])

	require.NoError(t, mgr.Activate(context.Background(), "lvol0"))
	assert.Equal(t, 1, resolver.calls[cloudDiskID], "second activate must not re-resolve an already-resolved PV")
}

func TestActivatePublishesVisibleLayer(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0", ExtentSize: 8192}
	sda := pv("/dev/sda", 0)
	lv := &metadata.LogicalVolume{Name: "lvol0", VG: vg, Size: 8192, Segments: []metadata.StripeSegment{
		{LE: 0, Len: 1, Areas: []metadata.Area{{PV: sda, PE: 0}}},
	}}
	vg.LVs = []*metadata.LogicalVolume{lv}

	m := mapper.NewMock()
	dir := t.TempDir()
	pub := fsnode.New(dir, m.Dir())
	mgr := New(vg, m, m, pub)

	require.NoError(t, mgr.Activate(context.Background(), "lvol0"))

	info, err := mgr.Info("lvol0")
	require.NoError(t, err)
	assert.True(t, info.Exists)

	target, err := os.Readlink(filepath.Join(dir, "vg0", "lvol0"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/mapper/vg0-lvol0", target)
}
