// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package reconcile scans the mapper directory, ingests existing devices
// belonging to a volume group, intersects them with the ideal graph
// produced by package graph, prunes unneeded nodes, and detects cycles.
package reconcile

import (
	"fmt"

	"github.com/hashicorp/go-dmplanner/graph"
	"github.com/hashicorp/go-dmplanner/internal/dmerr"
	"github.com/hashicorp/go-dmplanner/internal/dmname"
	"github.com/hashicorp/go-dmplanner/internal/layer"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
)

// Scan lists the mapper directory, ingests every device belonging to vg
// as a placeholder layer carrying its observed mapper.DeviceInfo, then
// expands every LV in vg into the ideal layer set. Layers that coincide in
// name between the two paths converge on the discovered, authoritative
// Info.
func Scan(dir mapper.Directory, m mapper.Mapper, vg *metadata.VolumeGroup, active graph.ActiveSet) (*layer.Index, error) {
	idx := layer.NewIndex()

	names, err := dir.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dmerr.ErrScanFailure, err)
	}

	probed := map[string]bool{}
	for _, name := range names {
		if !dmname.BelongsToVG(vg.Name, name) {
			continue
		}
		info, err := m.GetInfo(name)
		if err != nil {
			return nil, err
		}
		l := layer.New(name, layer.Vanilla)
		l.Info = info
		idx.Put(l)
		probed[name] = true
	}

	for _, lv := range vg.LVs {
		if _, err := graph.Expand(idx, vg.Name, lv, active); err != nil {
			return nil, err
		}
	}

	// Converge any ideal-only layer onto the mapper's observed info, so
	// the scanned and expanded views of the same device agree.
	for _, l := range idx.All() {
		if probed[l.Name] {
			continue
		}
		info, err := m.GetInfo(l.Name)
		if err != nil {
			return nil, err
		}
		l.Info = info
		probed[l.Name] = true
	}

	return idx, nil
}

// Select marks every layer reachable from targetTop via PreCreate*,
// removes everything else from idx, and verifies the surviving PreCreate
// relation is acyclic.
func Select(idx *layer.Index, targetTop string) error {
	top := idx.Get(targetTop)
	if top == nil {
		return fmt.Errorf("%w: no layer named %q", dmerr.ErrMissingDependency, targetTop)
	}

	if err := mark(idx, top); err != nil {
		return err
	}

	for _, l := range idx.All() {
		if !l.Flags.Has(layer.Mark) {
			idx.Delete(l.Name)
		}
	}

	return detectCycle(idx)
}

// mark sets layer.Mark on l and recursively on every layer reachable via
// PreCreate, failing if a PreCreate name has no corresponding layer.
func mark(idx *layer.Index, l *layer.Layer) error {
	if l.Flags.Has(layer.Mark) {
		return nil
	}
	l.Flags |= layer.Mark
	for _, depName := range l.PreCreate {
		dep := idx.Get(depName)
		if dep == nil {
			return fmt.Errorf("%w: %q depends on %q", dmerr.ErrMissingDependency, l.Name, depName)
		}
		if err := mark(idx, dep); err != nil {
			return err
		}
	}
	return nil
}

// detectCycle runs a standard three-color DFS over the pruned PreCreate
// relation: a node reached again while it is still gray (on the current
// path) heads a cycle. Colors live in a separate map instead of reusing
// the Mark bit, so this pass cannot be confused with the selection
// marking that precedes it.
func detectCycle(idx *layer.Index) error {
	const (
		white = iota
		gray
		black
	)
	color := map[string]int{}

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("%w: %v -> %s", dmerr.ErrCircularDependency, path, name)
		}
		color[name] = gray
		l := idx.Get(name)
		if l != nil {
			for _, dep := range l.PreCreate {
				if err := visit(dep, append(path, name)); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	for _, l := range idx.All() {
		if color[l.Name] == white {
			if err := visit(l.Name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// Roots returns the layers with no in-edges from other surviving layers
// in idx -- the executor's traversal entry points.
func Roots(idx *layer.Index) []*layer.Layer {
	hasIncoming := map[string]bool{}
	for _, l := range idx.All() {
		for _, dep := range l.PreCreate {
			hasIncoming[dep] = true
		}
	}
	var roots []*layer.Layer
	for _, l := range idx.All() {
		if !hasIncoming[l.Name] {
			roots = append(roots, l)
		}
	}
	return roots
}
