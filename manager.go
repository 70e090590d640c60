// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dmplanner is the activation planner's public façade, assembling
// the metadata store, mapper, reconciler, graph builder, table builder,
// and executor into the four public operations: Activate, Deactivate,
// Info, and Destroy. It is the one place that wires every collaborator
// together and runs them in the right order.
package dmplanner

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-dmplanner/cloudpv"
	"github.com/hashicorp/go-dmplanner/dmexec"
	"github.com/hashicorp/go-dmplanner/graph"
	"github.com/hashicorp/go-dmplanner/internal/dmname"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
	"github.com/hashicorp/go-dmplanner/reconcile"
)

// Manager is the planner's entry point for one volume group. It is not
// safe for concurrent use by multiple goroutines, matching a single-
// threaded per-build Config/Builder life cycle.
type Manager struct {
	vg      *metadata.VolumeGroup
	dm      mapper.Mapper
	dir     mapper.Directory
	publish dmexec.Publisher

	// resolver turns a PV's configured dev field into a local block device
	// path, attaching cloud-backed storage first if needed (the VG's
	// cloud_pv block). Defaults to cloudpv.LocalResolver, a no-op, so a VG
	// with no cloud_pv block always resolves to the configured dev as-is.
	resolver cloudpv.Resolver

	// resolved records which PVs this manager has already run through
	// resolver, so repeated Activate calls don't re-attach an
	// already-attached cloud disk.
	resolved map[*metadata.PhysicalVolume]bool

	// removeList is reserved for a future explicit "mark for removal on
	// next deactivate of the last dependent" policy. Its semantics are an
	// open question with no convincing answer yet, so it is carried as a
	// field for forward compatibility but never consulted today rather
	// than guessing at behavior.
	removeList map[string]bool
}

// New constructs a Manager over vg, driving devices through dm and
// publishing visible layers under publish (the zero value of Publisher
// disables publication). PVs are resolved locally; use NewWithResolver for
// a VG whose cloud_pv block names cloud-backed physical volumes.
func New(vg *metadata.VolumeGroup, dm mapper.Mapper, dir mapper.Directory, publish dmexec.Publisher) *Manager {
	return NewWithResolver(vg, dm, dir, publish, cloudpv.LocalResolver{})
}

// NewWithResolver is New, but resolves each PV's dev field through resolver
// before first use -- the collaborator a cloud_pv block wires in.
func NewWithResolver(vg *metadata.VolumeGroup, dm mapper.Mapper, dir mapper.Directory, publish dmexec.Publisher, resolver cloudpv.Resolver) *Manager {
	return &Manager{
		vg:         vg,
		dm:         dm,
		dir:        dir,
		publish:    publish,
		resolver:   resolver,
		resolved:   map[*metadata.PhysicalVolume]bool{},
		removeList: map[string]bool{},
	}
}

// IsActive satisfies graph.ActiveSet, gating whether an origin LV's "-real"
// layer is built during expansion. It reports the mapper's currently
// observed state for lv's top layer -- not an in-process activation
// history -- so it answers correctly for a Manager that was just
// constructed, matching how dmplan's CLI builds a fresh Manager per
// invocation and must still detect an LV a previous process activated.
func (mgr *Manager) IsActive(lvName string) bool {
	info, err := mgr.dm.GetInfo(dmname.Encode(mgr.vg.Name, lvName, ""))
	return err == nil && info.Exists
}

var _ graph.ActiveSet = (*Manager)(nil)

// Activate brings lv fully up: scan existing state, expand the ideal
// layer set, prune to what lv's top layer needs, and create/reload every
// surviving layer bottom-up.
func (mgr *Manager) Activate(ctx context.Context, lvName string) error {
	lv := mgr.vg.LV(lvName)
	if lv == nil {
		return fmt.Errorf("dmplanner: no LV named %q in VG %q", lvName, mgr.vg.Name)
	}

	if err := mgr.resolvePVs(ctx); err != nil {
		return err
	}

	idx, err := reconcile.Scan(mgr.dir, mgr.dm, mgr.vg, mgr)
	if err != nil {
		return err
	}

	top, err := graph.Expand(idx, mgr.vg.Name, lv, mgr)
	if err != nil {
		return err
	}

	if err := reconcile.Select(idx, top); err != nil {
		return err
	}

	roots := reconcile.Roots(idx)
	tb := &tableBuilder{vg: mgr.vg, dmDir: mgr.dm.Dir()}
	if err := dmexec.CreateOrReload(ctx, idx, roots, mgr.dm, tb, mgr.publish); err != nil {
		return err
	}

	return nil
}

// Deactivate tears lv fully down: scan, expand, prune, then remove every
// surviving layer top-down. Reports the operation's actual outcome rather
// than unconditionally returning failure on success.
func (mgr *Manager) Deactivate(ctx context.Context, lvName string) error {
	lv := mgr.vg.LV(lvName)
	if lv == nil {
		return fmt.Errorf("dmplanner: no LV named %q in VG %q", lvName, mgr.vg.Name)
	}

	idx, err := reconcile.Scan(mgr.dir, mgr.dm, mgr.vg, mgr)
	if err != nil {
		return err
	}

	top, err := graph.Expand(idx, mgr.vg.Name, lv, mgr)
	if err != nil {
		return err
	}

	if err := reconcile.Select(idx, top); err != nil {
		return err
	}

	roots := reconcile.Roots(idx)
	if err := dmexec.Remove(ctx, idx, roots, mgr.dm, mgr.publish); err != nil {
		return err
	}

	return nil
}

// Info reports the observed mapper state of lv's top-level device.
func (mgr *Manager) Info(lvName string) (mapper.DeviceInfo, error) {
	name := dmname.Encode(mgr.vg.Name, lvName, "")
	return mgr.dm.GetInfo(name)
}

// resolvePVs runs every not-yet-resolved PV in the VG through mgr.resolver,
// replacing its dev field with the local path the resolver returns. A PV
// already known-local (resolver is a no-op for it) is still marked resolved
// so Activate doesn't pay the resolver call on every activation.
func (mgr *Manager) resolvePVs(ctx context.Context) error {
	for _, pv := range mgr.vg.PVs {
		if mgr.resolved[pv] {
			continue
		}
		dev, err := mgr.resolver.Resolve(ctx, pv.Dev.Name)
		if err != nil {
			return fmt.Errorf("dmplanner: resolving PV device %q: %w", pv.Dev.Name, err)
		}
		pv.Dev.Name = dev
		mgr.resolved[pv] = true
	}
	return nil
}

// Destroy releases the manager's in-memory bookkeeping. It does not touch
// any mapper device; callers that want devices torn down must Deactivate
// each active LV first.
func (mgr *Manager) Destroy() {
	mgr.resolved = map[*metadata.PhysicalVolume]bool{}
	mgr.removeList = map[string]bool{}
}
