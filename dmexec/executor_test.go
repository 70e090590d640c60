// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package dmexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/go-dmplanner/internal/layer"
	"github.com/hashicorp/go-dmplanner/mapper"
)

type fakeTables struct{}

func (fakeTables) BuildTable(l *layer.Layer) ([]mapper.Target, error) {
	return []mapper.Target{{Start: 0, Length: 1, Type: "linear", Params: "fake 0"}}, nil
}

type fakePublisher struct {
	added   []string
	removed []string
}

func (p *fakePublisher) Add(l *layer.Layer) error { p.added = append(p.added, l.Name); return nil }
func (p *fakePublisher) Del(l *layer.Layer) error { p.removed = append(p.removed, l.Name); return nil }

func callNames(calls []mapper.Call, t mapper.TaskType) []string {
	var out []string
	for _, c := range calls {
		if c.Type == t {
			out = append(out, c.Name)
		}
	}
	return out
}

func TestCreateOrReloadCreatesDepsBeforeDependent(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-snap", layer.Snapshot)
	top.Flags |= layer.Visible
	top.AddPreCreate("vg0-snap-cow")
	top.AddPreCreate("vg0-orig-real")
	idx.Ensure("vg0-snap-cow", layer.Vanilla)
	idx.Ensure("vg0-orig-real", layer.Vanilla)

	m := mapper.NewMock()
	pub := &fakePublisher{}

	roots := []*layer.Layer{top}
	err := CreateOrReload(context.Background(), idx, roots, m, fakeTables{}, pub)
	require.NoError(t, err)

	creates := callNames(m.Calls, mapper.Create)
	assert.Equal(t, []string{"vg0-snap-cow", "vg0-orig-real", "vg0-snap"}, creates)

	assert.Equal(t, []string{"vg0-snap"}, pub.added)
}

func TestCreateOrReloadSuspendsExistingBeforeReload(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-lvol0", layer.Vanilla)
	top.Flags |= layer.Visible

	m := mapper.NewMock()
	m.Devices["vg0-lvol0"] = mapper.DeviceInfo{Exists: true}

	err := CreateOrReload(context.Background(), idx, []*layer.Layer{top}, m, fakeTables{}, &fakePublisher{})
	require.NoError(t, err)

	require.Len(t, m.Calls, 3)
	assert.Equal(t, mapper.Suspend, m.Calls[0].Type)
	assert.Equal(t, mapper.Reload, m.Calls[1].Type)
	assert.Equal(t, mapper.Resume, m.Calls[2].Type)
}

func TestCreateOrReloadHaltsOnMapperFailure(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-lvol0", layer.Vanilla)
	top.AddPreCreate("vg0-dep")
	idx.Ensure("vg0-dep", layer.Vanilla)

	m := mapper.NewMock()
	m.FailOn = map[string]bool{"vg0-dep": true}

	err := CreateOrReload(context.Background(), idx, []*layer.Layer{top}, m, fakeTables{}, &fakePublisher{})
	require.Error(t, err)

	// Only the failing dependency's create was attempted; the dependent's
	// create must never have been.
	assert.Equal(t, []string{"vg0-dep"}, callNames(m.Calls, mapper.Create))
}

func TestRemoveResumesSuspendedThenRemovesPreOrder(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-snap", layer.Snapshot)
	top.Flags |= layer.Visible
	top.AddPreCreate("vg0-snap-cow")

	m := mapper.NewMock()
	m.Devices["vg0-snap"] = mapper.DeviceInfo{Exists: true, Suspended: true}
	m.Devices["vg0-snap-cow"] = mapper.DeviceInfo{Exists: true}

	pub := &fakePublisher{}
	err := Remove(context.Background(), idx, []*layer.Layer{top}, m, pub)
	require.NoError(t, err)

	removes := callNames(m.Calls, mapper.Remove)
	require.Len(t, removes, 2)
	assert.Equal(t, "vg0-snap", removes[0])
	assert.Equal(t, "vg0-snap-cow", removes[1])

	resumes := callNames(m.Calls, mapper.Resume)
	assert.Equal(t, []string{"vg0-snap"}, resumes)

	assert.Equal(t, []string{"vg0-snap"}, pub.removed)
}

func TestRemoveSkipsNonexistentDevice(t *testing.T) {
	idx := layer.NewIndex()
	top := idx.Ensure("vg0-lvol0", layer.Vanilla)
	top.Flags |= layer.Visible

	m := mapper.NewMock()

	err := Remove(context.Background(), idx, []*layer.Layer{top}, m, &fakePublisher{})
	require.NoError(t, err)
	assert.Empty(t, m.Calls)
}
