// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dmexec traverses the pruned layer graph bottom-up to create or
// reload, and top-down to remove, applying the suspend/resume/reload
// discipline a live device needs before its table can change safely.
// Each layer visit is one multistep.Step, sequenced and run by a
// multistep.BasicRunner the way a provisioning pipeline sequences its
// attach/mount/provision steps -- ActionHalt from any step aborts every
// step after it; failures propagate upward and abort the current public
// operation, no rollback is attempted.
package dmexec

import (
	"context"
	"fmt"

	"github.com/hashicorp/packer-plugin-sdk/multistep"

	"github.com/hashicorp/go-dmplanner/internal/dmerr"
	"github.com/hashicorp/go-dmplanner/internal/dmlog"
	"github.com/hashicorp/go-dmplanner/internal/layer"
	"github.com/hashicorp/go-dmplanner/mapper"
)

// TableBuilder produces the Create/Reload targets for l when it has no
// populate-time dependency of its own (the graph/dmtable packages supply
// the real implementation; tests may substitute a fake).
type TableBuilder interface {
	BuildTable(l *layer.Layer) ([]mapper.Target, error)
}

// Publisher is the filesystem publisher collaborator a successful
// create/reload or remove notifies: fs_add_lv/fs_del_lv.
type Publisher interface {
	Add(l *layer.Layer) error
	Del(l *layer.Layer) error
}

const (
	stateKeyMapper    = "mapper"
	stateKeyIndex     = "index"
	stateKeyTables    = "tables"
	stateKeyPublisher = "publisher"
	stateKeyError     = "error"
)

// run executes a sequence of steps built by buildCreateSteps or
// buildRemoveSteps and reports the first failure, if any.
func run(ctx context.Context, steps []multistep.Step, m mapper.Mapper, idx *layer.Index, tables TableBuilder, pub Publisher) error {
	state := new(multistep.BasicStateBag)
	state.Put(stateKeyMapper, m)
	state.Put(stateKeyIndex, idx)
	state.Put(stateKeyTables, tables)
	state.Put(stateKeyPublisher, pub)

	runner := &multistep.BasicRunner{Steps: steps}
	runner.Run(ctx, state)

	if raw, ok := state.GetOk(stateKeyError); ok {
		return raw.(error)
	}
	return nil
}

// CreateOrReload walks roots post-order over PreCreate -- every
// dependency created or reloaded before the layer that needs it -- and
// runs the resulting step sequence.
func CreateOrReload(ctx context.Context, idx *layer.Index, roots []*layer.Layer, m mapper.Mapper, tables TableBuilder, pub Publisher) error {
	var steps []multistep.Step
	visited := map[string]bool{}
	for _, root := range roots {
		buildCreateSteps(idx, root, visited, &steps)
	}
	return run(ctx, steps, m, idx, tables, pub)
}

func buildCreateSteps(idx *layer.Index, l *layer.Layer, visited map[string]bool, steps *[]multistep.Step) {
	if visited[l.Name] {
		return
	}
	visited[l.Name] = true

	if l.Info.Exists {
		*steps = append(*steps, &stepSuspend{name: l.Name})
	}

	for _, depName := range l.PreCreate {
		dep := idx.Get(depName)
		if dep == nil {
			continue // invariant violation; surfaced earlier by reconcile.Select
		}
		buildCreateSteps(idx, dep, visited, steps)
	}

	*steps = append(*steps, &stepCreateOrReload{l: l})
}

// Remove walks roots pre-order over PreCreate -- a layer removed before
// the dependencies it sits on top of -- and runs the resulting step
// sequence.
func Remove(ctx context.Context, idx *layer.Index, roots []*layer.Layer, m mapper.Mapper, pub Publisher) error {
	var steps []multistep.Step
	visited := map[string]bool{}
	for _, root := range roots {
		buildRemoveSteps(idx, root, visited, &steps)
	}
	return run(ctx, steps, m, idx, nil, pub)
}

func buildRemoveSteps(idx *layer.Index, l *layer.Layer, visited map[string]bool, steps *[]multistep.Step) {
	if visited[l.Name] {
		return
	}
	visited[l.Name] = true

	*steps = append(*steps, &stepRemove{l: l})

	for _, depName := range l.PreCreate {
		dep := idx.Get(depName)
		if dep == nil {
			continue
		}
		buildRemoveSteps(idx, dep, visited, steps)
	}
}

func halt(state multistep.StateBag, err error) multistep.StepAction {
	state.Put(stateKeyError, err)
	return multistep.ActionHalt
}

// stepSuspend suspends an already-existing device. A no-op if the mapper
// already reports it suspended.
type stepSuspend struct{ name string }

func (s *stepSuspend) Run(ctx context.Context, state multistep.StateBag) multistep.StepAction {
	m := state.Get(stateKeyMapper).(mapper.Mapper)

	info, err := m.GetInfo(s.name)
	if err != nil {
		return halt(state, err)
	}
	if !info.Exists || info.Suspended {
		return multistep.ActionContinue
	}

	dmlog.Printf("suspending %s", s.name)
	if err := m.Run(mapper.NewTask(mapper.Suspend, s.name)); err != nil {
		return halt(state, fmt.Errorf("%w: suspend %s: %v", dmerr.ErrMapperFailure, s.name, err))
	}
	return multistep.ActionContinue
}

func (s *stepSuspend) Cleanup(state multistep.StateBag) {}

// stepCreateOrReload reloads l's table if it already exists (then resumes
// it), or creates it fresh. On success it publishes the device if l is
// VISIBLE.
type stepCreateOrReload struct{ l *layer.Layer }

func (s *stepCreateOrReload) Run(ctx context.Context, state multistep.StateBag) multistep.StepAction {
	m := state.Get(stateKeyMapper).(mapper.Mapper)
	tables := state.Get(stateKeyTables).(TableBuilder)

	targets, err := tables.BuildTable(s.l)
	if err != nil {
		return halt(state, err)
	}

	info, err := m.GetInfo(s.l.Name)
	if err != nil {
		return halt(state, err)
	}

	if info.Exists {
		task := mapper.NewTask(mapper.Reload, s.l.Name)
		for _, t := range targets {
			task.AddTarget(t)
		}
		dmlog.PrintFields("reloading", dmlog.Fields{"layer": s.l.Name, "populate": s.l.Populate, "targets": len(targets)})
		if err := m.Run(task); err != nil {
			return halt(state, fmt.Errorf("%w: reload %s: %v", dmerr.ErrMapperFailure, s.l.Name, err))
		}

		dmlog.Printf("resuming %s", s.l.Name)
		if err := m.Run(mapper.NewTask(mapper.Resume, s.l.Name)); err != nil {
			return halt(state, fmt.Errorf("%w: resume %s: %v", dmerr.ErrMapperFailure, s.l.Name, err))
		}
	} else {
		task := mapper.NewTask(mapper.Create, s.l.Name)
		for _, t := range targets {
			task.AddTarget(t)
		}
		dmlog.PrintFields("creating", dmlog.Fields{"layer": s.l.Name, "populate": s.l.Populate, "targets": len(targets)})
		if err := m.Run(task); err != nil {
			return halt(state, fmt.Errorf("%w: create %s: %v", dmerr.ErrMapperFailure, s.l.Name, err))
		}
	}

	if s.l.Flags.Has(layer.Visible) {
		pub, _ := state.Get(stateKeyPublisher).(Publisher)
		if pub != nil {
			if err := pub.Add(s.l); err != nil {
				return halt(state, err)
			}
		}
	}

	return multistep.ActionContinue
}

func (s *stepCreateOrReload) Cleanup(state multistep.StateBag) {}

// stepRemove resumes l first if it is suspended -- a suspended device
// cannot be removed safely in the presence of open holders -- removes
// it, and publishes the removal if l is VISIBLE.
type stepRemove struct{ l *layer.Layer }

func (s *stepRemove) Run(ctx context.Context, state multistep.StateBag) multistep.StepAction {
	m := state.Get(stateKeyMapper).(mapper.Mapper)

	info, err := m.GetInfo(s.l.Name)
	if err != nil {
		return halt(state, err)
	}
	if !info.Exists {
		return multistep.ActionContinue
	}

	if info.Suspended {
		dmlog.Printf("resuming %s before remove", s.l.Name)
		if err := m.Run(mapper.NewTask(mapper.Resume, s.l.Name)); err != nil {
			return halt(state, fmt.Errorf("%w: resume %s: %v", dmerr.ErrMapperFailure, s.l.Name, err))
		}
	}

	dmlog.Printf("removing %s", s.l.Name)
	if err := m.Run(mapper.NewTask(mapper.Remove, s.l.Name)); err != nil {
		return halt(state, fmt.Errorf("%w: remove %s: %v", dmerr.ErrMapperFailure, s.l.Name, err))
	}

	if s.l.Flags.Has(layer.Visible) {
		pub, _ := state.Get(stateKeyPublisher).(Publisher)
		if pub != nil {
			if err := pub.Del(s.l); err != nil {
				return halt(state, err)
			}
		}
	}

	return multistep.ActionContinue
}

func (s *stepRemove) Cleanup(state multistep.StateBag) {}
