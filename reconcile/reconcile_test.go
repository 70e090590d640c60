// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/go-dmplanner/internal/dmerr"
	"github.com/hashicorp/go-dmplanner/internal/layer"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
)

type fakeActiveSet map[string]bool

func (f fakeActiveSet) IsActive(name string) bool { return f[name] }

func TestScanExpandsEveryLVAndConverges(t *testing.T) {
	vg := &metadata.VolumeGroup{Name: "vg0"}
	lv := &metadata.LogicalVolume{Name: "lvol0", VG: vg}
	vg.LVs = []*metadata.LogicalVolume{lv}

	m := mapper.NewMock()
	m.Devices["vg0-lvol0"] = mapper.DeviceInfo{Exists: true, Major: 253, Minor: 7}
	m.Entries = []string{"vg0-lvol0", "unrelated-device"}

	idx, err := Scan(m, m, vg, fakeActiveSet{})
	require.NoError(t, err)

	l := idx.Get("vg0-lvol0")
	require.NotNil(t, l)
	assert.True(t, l.Info.Exists)
	assert.EqualValues(t, 253, l.Info.Major)

	assert.Nil(t, idx.Get("unrelated-device"))
}

func TestSelectPrunesUnreachableLayersS4(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-lvol0", layer.Vanilla)
	top.AddPreCreate("vg0-lvol0-real")
	idx.Ensure("vg0-lvol0-real", layer.Vanilla)
	// Unrelated layer from a different LV's expansion, should be pruned.
	idx.Ensure("vg0-other", layer.Vanilla)

	require.NoError(t, Select(idx, "vg0-lvol0"))

	assert.NotNil(t, idx.Get("vg0-lvol0"))
	assert.NotNil(t, idx.Get("vg0-lvol0-real"))
	assert.Nil(t, idx.Get("vg0-other"))
	assert.Equal(t, 2, idx.Len())
}

func TestSelectUnknownTopFails(t *testing.T) {
	idx := layer.NewIndex()
	err := Select(idx, "vg0-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dmerr.ErrMissingDependency))
}

func TestSelectDanglingPreCreateFails(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-lvol0", layer.Vanilla)
	top.AddPreCreate("vg0-lvol0-ghost")

	err := Select(idx, "vg0-lvol0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dmerr.ErrMissingDependency))
}

func TestDetectCycleRejectsCircularPreCreateS6(t *testing.T) {
	idx := layer.NewIndex()
	a := idx.Ensure("vg0-a", layer.Vanilla)
	b := idx.Ensure("vg0-b", layer.Vanilla)
	a.AddPreCreate("vg0-b")
	b.AddPreCreate("vg0-a")

	err := Select(idx, "vg0-a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dmerr.ErrCircularDependency))
}

func TestDetectCycleAcceptsDiamond(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-top", layer.Vanilla)
	mid1 := idx.Ensure("vg0-mid1", layer.Vanilla)
	mid2 := idx.Ensure("vg0-mid2", layer.Vanilla)
	idx.Ensure("vg0-leaf", layer.Vanilla)
	top.AddPreCreate("vg0-mid1")
	top.AddPreCreate("vg0-mid2")
	mid1.AddPreCreate("vg0-leaf")
	mid2.AddPreCreate("vg0-leaf")

	require.NoError(t, Select(idx, "vg0-top"))
	assert.Equal(t, 4, idx.Len())
}

func TestRootsReturnsOnlyLayersWithNoIncomingEdge(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-top", layer.Vanilla)
	top.AddPreCreate("vg0-dep")
	idx.Ensure("vg0-dep", layer.Vanilla)

	roots := Roots(idx)
	require.Len(t, roots, 1)
	assert.Equal(t, "vg0-top", roots[0].Name)
}

func TestRootsAfterSelectIsSingleTopForSnapshotFanOut(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-snap", layer.Snapshot)
	top.AddPreCreate("vg0-snap-cow")
	top.AddPreCreate("vg0-orig-real")
	idx.Ensure("vg0-snap-cow", layer.Vanilla)
	idx.Ensure("vg0-orig-real", layer.Vanilla)

	require.NoError(t, Select(idx, "vg0-snap"))

	roots := Roots(idx)
	require.Len(t, roots, 1)
	assert.Equal(t, "vg0-snap", roots[0].Name)
}
