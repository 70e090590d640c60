// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package dmplanner

import (
	"fmt"

	"github.com/hashicorp/go-dmplanner/internal/dmname"
	"github.com/hashicorp/go-dmplanner/internal/dmtable"
	"github.com/hashicorp/go-dmplanner/internal/layer"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
)

// tableBuilder adapts a VolumeGroup's metadata into dmexec.TableBuilder,
// resolving a layer back to the segments or snapshot/origin relation that
// determine its mapper.Target rows, driven by the layer's decoded name.
type tableBuilder struct {
	vg    *metadata.VolumeGroup
	dmDir string
}

func (b *tableBuilder) BuildTable(l *layer.Layer) ([]mapper.Target, error) {
	_, lvName, kind, ok := dmname.Decode(l.Name)
	if !ok {
		return nil, fmt.Errorf("dmplanner: %q is not a well-formed layer name", l.Name)
	}

	switch l.Populate {
	case layer.Origin:
		lv := b.vg.LV(lvName)
		if lv == nil {
			return nil, fmt.Errorf("dmplanner: no LV named %q in VG %q", lvName, b.vg.Name)
		}
		realName, err := preCreate(l, 0)
		if err != nil {
			return nil, err
		}
		t, err := dmtable.EmitOrigin(b.dmDir, realName, lv.Size)
		return []mapper.Target{t}, err

	case layer.Snapshot:
		lv := b.vg.LV(lvName)
		if lv == nil {
			return nil, fmt.Errorf("dmplanner: no LV named %q in VG %q", lvName, b.vg.Name)
		}
		snap := lv.FindCow()
		if snap == nil {
			return nil, fmt.Errorf("dmplanner: %q is not a snapshot", lvName)
		}
		cowName, err := preCreate(l, 0)
		if err != nil {
			return nil, err
		}
		realName, err := preCreate(l, 1)
		if err != nil {
			return nil, err
		}
		t, err := dmtable.EmitSnapshot(b.dmDir, realName, cowName, snap.ChunkSize, snap.Origin.Size)
		return []mapper.Target{t}, err

	default:
		segs, err := b.vanillaSegments(lvName, kind)
		if err != nil {
			return nil, err
		}
		targets := make([]mapper.Target, 0, len(segs))
		for _, seg := range segs {
			t, err := dmtable.EmitSegment(seg, b.vg.ExtentSize)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
		return targets, nil
	}
}

// vanillaSegments returns the segment list backing a plain linear/striped
// device. kind=="cow" names a snapshot's cow store, reached indirectly
// through the snapshot relation (the "cow" name component is the
// snapshot's own LV name, not the cow LV's name, per graph.expandSnapshot);
// any other kind (top-level or "real") names the LV directly.
func (b *tableBuilder) vanillaSegments(lvName, kind string) ([]metadata.StripeSegment, error) {
	if kind == "cow" {
		snapLV := b.vg.LV(lvName)
		if snapLV == nil {
			return nil, fmt.Errorf("dmplanner: no LV named %q in VG %q", lvName, b.vg.Name)
		}
		snap := snapLV.FindCow()
		if snap == nil {
			return nil, fmt.Errorf("dmplanner: %q is not a snapshot", lvName)
		}
		return snap.Cow.Segments, nil
	}

	lv := b.vg.LV(lvName)
	if lv == nil {
		return nil, fmt.Errorf("dmplanner: no LV named %q in VG %q", lvName, b.vg.Name)
	}
	return lv.Segments, nil
}

func preCreate(l *layer.Layer, i int) (string, error) {
	if i >= len(l.PreCreate) {
		return "", fmt.Errorf("dmplanner: layer %q is missing expected pre_create entry %d", l.Name, i)
	}
	return l.PreCreate[i], nil
}
