// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package graph expands each logical volume into its canonical layer set:
// vanilla, origin+real, or snapshot+cow.
package graph

import (
	"fmt"

	"github.com/hashicorp/go-dmplanner/internal/dmerr"
	"github.com/hashicorp/go-dmplanner/internal/dmname"
	"github.com/hashicorp/go-dmplanner/internal/layer"
	"github.com/hashicorp/go-dmplanner/metadata"
)

// lvRef adapts *metadata.LogicalVolume to layer.LVRef.
type lvRef struct{ lv *metadata.LogicalVolume }

func (r lvRef) LVName() string { return r.lv.Name }

// ActiveSet reports whether an LV is in the manager's active list, which
// gates whether an origin LV expands with a "-real" layer or purely as
// vanilla.
type ActiveSet interface {
	IsActive(lvName string) bool
}

// Expand inserts into idx the ideal layer set for lv (vanilla, snapshot, or
// origin+real as gated by active), returning the name of lv's top
// (visible) layer. It is the sole constructor of layers and PreCreate
// edges.
func Expand(idx *layer.Index, vg string, lv *metadata.LogicalVolume, active ActiveSet) (string, error) {
	if snap := lv.FindCow(); snap != nil {
		if snap.Origin.FindCow() != nil {
			return "", fmt.Errorf("%w: %s is a snapshot of a snapshot", dmerr.ErrRecursiveSnapshot, lv.Name)
		}
		return expandSnapshot(idx, vg, lv, snap)
	}

	if metadata.LVIsOrigin(lv) && hasActiveSnapshot(lv, active) {
		return expandOrigin(idx, vg, lv)
	}

	return expandVanilla(idx, vg, lv)
}

// hasActiveSnapshot reports whether at least one snapshot of lv is in the
// active set: an origin only needs its "-real" indirection while one of
// its snapshots is actually active.
func hasActiveSnapshot(lv *metadata.LogicalVolume, active ActiveSet) bool {
	if lv.VG == nil {
		return false
	}
	for _, other := range lv.VG.LVs {
		if snap := other.FindCow(); snap != nil && snap.Origin == lv && active.IsActive(other.Name) {
			return true
		}
	}
	return false
}

func expandVanilla(idx *layer.Index, vg string, lv *metadata.LogicalVolume) (string, error) {
	top := idx.Ensure(dmname.Encode(vg, lv.Name, ""), layer.Vanilla)
	top.LV = lvRef{lv}
	top.Flags |= layer.Visible
	return top.Name, nil
}

func expandOrigin(idx *layer.Index, vg string, lv *metadata.LogicalVolume) (string, error) {
	realName := dmname.Encode(vg, lv.Name, "real")
	real := idx.Ensure(realName, layer.Vanilla)
	real.LV = lvRef{lv}

	top := idx.Ensure(dmname.Encode(vg, lv.Name, ""), layer.Origin)
	top.LV = lvRef{lv}
	top.Flags |= layer.Visible
	top.AddPreCreate(realName)

	return top.Name, nil
}

func expandSnapshot(idx *layer.Index, vg string, lv *metadata.LogicalVolume, snap *metadata.Snapshot) (string, error) {
	cowName := dmname.Encode(vg, lv.Name, "cow")
	cow := idx.Ensure(cowName, layer.Vanilla)
	cow.LV = lvRef{snap.Cow}

	// The origin's "-real" layer exists regardless of whether the origin
	// itself is separately active: a live snapshot always needs it.
	realName := dmname.Encode(vg, snap.Origin.Name, "real")
	real := idx.Ensure(realName, layer.Vanilla)
	real.LV = lvRef{snap.Origin}

	top := idx.Ensure(dmname.Encode(vg, lv.Name, ""), layer.Snapshot)
	top.LV = lvRef{lv}
	top.Flags |= layer.Visible
	top.AddPreCreate(cowName)
	top.AddPreCreate(realName)

	return top.Name, nil
}
