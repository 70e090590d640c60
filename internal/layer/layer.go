// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package layer is the in-memory node model of one mapper device, and the
// name-keyed index the reconciler and executor share, generalizing a
// lun-keyed disk index into a name-keyed registry of layers.
package layer

import "github.com/hashicorp/go-dmplanner/mapper"

// Flags is the independent bit set each layer carries.
type Flags uint8

const (
	Mark Flags = 1 << iota
	Dirty
	Visible
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Populate selects which table-emission strategy builds this layer's
// targets when it is (re)loaded.
type Populate int

const (
	Vanilla Populate = iota
	Origin
	Snapshot
)

// LVRef is the minimal view of an owning logical volume a layer needs;
// package graph adapts *metadata.LogicalVolume to it. Kept as an interface so this
// package does not import metadata, keeping leaf packages free of
// upward dependencies.
type LVRef interface {
	LVName() string
}

// Layer is one mapper device in the stack that realizes an LV. A layer
// discovered during the reconciler's directory scan but not (yet) claimed
// by any expanded LV has LV == nil and Populate is meaningless.
type Layer struct {
	Name string
	LV   LVRef

	Flags Flags

	Populate Populate

	Info mapper.DeviceInfo

	// PreCreate names layers that must exist-and-be-loaded before this
	// layer can be created or reloaded. Stored as names, not pointers, so
	// the graph builder can emit a dependency edge before the dependency's
	// own node has been inserted into the index.
	PreCreate []string

	// PreActive is reserved for layers that must be un-suspended before
	// this one may be resumed. Unused by the executor today: "may exist"
	// and "may be resumed" are distinct conditions, and a correct
	// snapshot-origin swap likely needs to distinguish them eventually.
	PreActive []string

	// Extension is an open extension point for data a future UUID
	// assignment pass would attach to a visible layer.
	Extension any
}

// New creates an unflagged layer with no dependencies.
func New(name string, populate Populate) *Layer {
	return &Layer{Name: name, Populate: populate}
}

// AddPreCreate appends a dependency name, if not already present.
func (l *Layer) AddPreCreate(name string) {
	for _, n := range l.PreCreate {
		if n == name {
			return
		}
	}
	l.PreCreate = append(l.PreCreate, name)
}

// Index is the name-keyed layer registry built during graph construction
// and reconciliation.
type Index struct {
	byName map[string]*Layer
}

func NewIndex() *Index {
	return &Index{byName: map[string]*Layer{}}
}

// Get returns the layer named name, or nil.
func (idx *Index) Get(name string) *Layer {
	return idx.byName[name]
}

// Ensure returns the existing layer named name, or inserts and returns a
// freshly created one. First-insert wins for the non-info fields, and
// observed info is authoritative: an existing entry keeps its Info, LV
// and PreCreate. The one exception is an unclaimed scan placeholder
// (LV == nil), whose Populate is meaningless and is replaced by populate.
func (idx *Index) Ensure(name string, populate Populate) *Layer {
	if existing, ok := idx.byName[name]; ok {
		if existing.LV == nil {
			existing.Populate = populate
		}
		return existing
	}
	l := New(name, populate)
	idx.byName[name] = l
	return l
}

// Put inserts l, overwriting any existing entry of the same name. Used by
// the reconciler's initial directory-scan pass, which always runs before
// ideal expansion.
func (idx *Index) Put(l *Layer) {
	idx.byName[l.Name] = l
}

// Delete removes the layer named name from the index (used by prune).
func (idx *Index) Delete(name string) {
	delete(idx.byName, name)
}

// All returns every layer currently in the index, in no particular order.
func (idx *Index) All() []*Layer {
	out := make([]*Layer, 0, len(idx.byName))
	for _, l := range idx.byName {
		out = append(out, l)
	}
	return out
}

// Len reports the number of layers currently indexed.
func (idx *Index) Len() int {
	return len(idx.byName)
}
