// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package fsnode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/go-dmplanner/internal/layer"
)

type fakeLVRef string

func (f fakeLVRef) LVName() string { return string(f) }

func TestAddCreatesSymlinkToMapperDevice(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "/dev/mapper")

	l := layer.New("vg0-lvol0", layer.Vanilla)
	l.LV = fakeLVRef("lvol0")

	require.NoError(t, p.Add(l))

	link := filepath.Join(dir, "vg0", "lvol0")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "/dev/mapper/vg0-lvol0", target)
}

func TestAddThenDelRemovesSymlink(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "/dev/mapper")

	l := layer.New("vg0-lvol0", layer.Vanilla)
	l.LV = fakeLVRef("lvol0")

	require.NoError(t, p.Add(l))
	require.NoError(t, p.Del(l))

	_, err := os.Lstat(filepath.Join(dir, "vg0", "lvol0"))
	assert.True(t, os.IsNotExist(err))
}

func TestDelOnMissingLinkIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "/dev/mapper")

	l := layer.New("vg0-lvol0", layer.Vanilla)
	l.LV = fakeLVRef("lvol0")

	require.NoError(t, p.Del(l))
}

func TestAddWithoutOwningLVFails(t *testing.T) {
	p := New(t.TempDir(), "/dev/mapper")
	l := layer.New("vg0-lvol0-real", layer.Vanilla)

	err := p.Add(l)
	assert.Error(t, err)
}
