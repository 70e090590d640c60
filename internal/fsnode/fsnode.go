// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package fsnode implements the filesystem publisher collaborator
// (fs_add_lv/fs_del_lv): a symlink at "<dir>/<vg>/<lv>" pointing at the
// visible layer's mapper device node, created and removed the way a
// mount-path step prepares and tears down its target directory --
// MkdirAll before creating, best-effort cleanup on removal.
package fsnode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-dmplanner/internal/dmlog"
	"github.com/hashicorp/go-dmplanner/internal/dmname"
	"github.com/hashicorp/go-dmplanner/internal/layer"
)

// Publisher links visible layers into a per-VG directory tree rooted at
// Dir, e.g. Dir/vg0/lvol0 -> mapperDir/vg0-lvol0.
type Publisher struct {
	// Dir is the root of the published LV tree. Defaults to "/dev" at
	// the call site if empty; fsnode itself takes the directory as given.
	Dir string

	// MapperDir is the device-mapper directory the symlink target is
	// expressed relative to (mapper.Mapper.Dir()).
	MapperDir string
}

func New(dir, mapperDir string) *Publisher {
	return &Publisher{Dir: dir, MapperDir: mapperDir}
}

// Add creates the published symlink for l. l.LV must be non-nil; a layer
// with no owning LV (a scan placeholder no expanded LV claimed) is
// rejected with an error.
func (p *Publisher) Add(l *layer.Layer) error {
	vg, lv, err := p.vgAndLV(l)
	if err != nil {
		return err
	}

	vgDir := filepath.Join(p.Dir, vg)
	if err := os.MkdirAll(vgDir, 0755); err != nil {
		return fmt.Errorf("fsnode: creating %s: %w", vgDir, err)
	}

	link := filepath.Join(vgDir, lv)
	target := filepath.Join(p.MapperDir, l.Name)

	_ = os.Remove(link) // stale link from a prior partial run
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("fsnode: linking %s -> %s: %w", link, target, err)
	}

	dmlog.Printf("published %s -> %s", link, target)
	return nil
}

// Del removes the published symlink for l, ignoring a missing link.
func (p *Publisher) Del(l *layer.Layer) error {
	vg, lv, err := p.vgAndLV(l)
	if err != nil {
		return err
	}

	link := filepath.Join(p.Dir, vg, lv)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fsnode: removing %s: %w", link, err)
	}

	dmlog.Printf("unpublished %s", link)
	return nil
}

func (p *Publisher) vgAndLV(l *layer.Layer) (vg, lv string, err error) {
	if l.LV == nil {
		return "", "", fmt.Errorf("fsnode: layer %q has no owning LV", l.Name)
	}
	vg, lv, _, ok := dmname.Decode(l.Name)
	if !ok {
		return "", "", fmt.Errorf("fsnode: %q is not a well-formed layer name", l.Name)
	}
	return vg, lv, nil
}
